package logparse

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const maxDisplayRunes = 50

var hundred = decimal.NewFromInt(100)

// formatOdds renders a 0..1 price as a percentage with one decimal, e.g. "65.0%".
func formatOdds(price decimal.Decimal) string {
	return price.Mul(hundred).StringFixed(1) + "%"
}

func formatConviction(conf decimal.Decimal) string {
	return conf.Mul(hundred).Round(0).String() + "%"
}

// formatLiquidity groups thousands and keeps at most three fraction digits.
func formatLiquidity(v decimal.Decimal) string {
	s := v.Round(3).String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func truncateDisplay(s string) string {
	if utf8.RuneCountInString(s) <= maxDisplayRunes {
		return s
	}
	return string([]rune(s)[:maxDisplayRunes]) + "..."
}

func edgeOf(yes, win decimal.Decimal) float64 {
	f, _ := win.Sub(yes).Abs().Mul(hundred).Float64()
	return f
}
