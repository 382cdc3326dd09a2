package repository

import "ZigmaPulse/internal/domain/models"

// Variant names the call site a parse serves. It fixes the default market
// label and the default result window.
type Variant string

const (
	VariantLatest Variant = "latest"
	VariantFeed   Variant = "feed"
	VariantLogs   Variant = "logs"
)

// Policy is the per-variant parse configuration.
type Policy struct {
	DefaultMarket string
	Window        int
}

// IsValidVariant returns true if v is a known variant.
func IsValidVariant(v Variant) bool {
	switch v {
	case VariantLatest, VariantFeed, VariantLogs:
		return true
	default:
		return false
	}
}

func DefaultVariant() Variant { return VariantFeed }

// NormalizeVariant converts a raw string to a valid variant (or the default).
func NormalizeVariant(s string) Variant {
	v := Variant(s)
	if IsValidVariant(v) {
		return v
	}
	return DefaultVariant()
}

// PolicyFor returns the parse policy of v.
func PolicyFor(v Variant) Policy {
	switch v {
	case VariantLatest:
		return Policy{DefaultMarket: models.UnknownMarket, Window: 1}
	case VariantLogs:
		return Policy{DefaultMarket: "", Window: 10}
	default:
		return Policy{DefaultMarket: models.UnknownMarket, Window: 5}
	}
}
