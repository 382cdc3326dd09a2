package models

import "time"

const (
	// NotAvailable is the placeholder for enrichment fields that no log line filled in.
	NotAvailable = "N/A"
	// UnknownMarket labels signals seen before any market context.
	UnknownMarket = "Unknown Market"
)

// Signal is one trade recommendation emitted by the agent.
// Confidence and Exposure keep the digits exactly as the agent wrote them.
type Signal struct {
	Market        string `json:"market"`
	MarketID      string `json:"marketId"`
	Action        string `json:"action"`
	Confidence    string `json:"confidence"`
	Exposure      string `json:"exposure"`
	Timestamp     string `json:"timestamp"`
	EffectiveEdge string `json:"effectiveEdge"`
	Entropy       string `json:"entropy"`
	Conviction    string `json:"conviction"`
	MarketOdds    string `json:"marketOdds"`
	ZigmaOdds     string `json:"zigmaOdds"`
	Liquidity     string `json:"liquidity"`
}

// NewSignal returns a Signal with every enrichment field set to NotAvailable.
func NewSignal(market, marketID, action, confidence, exposure, cycle string) *Signal {
	return &Signal{
		Market:        market,
		MarketID:      marketID,
		Action:        action,
		Confidence:    confidence,
		Exposure:      exposure,
		Timestamp:     cycle,
		EffectiveEdge: NotAvailable,
		Entropy:       NotAvailable,
		Conviction:    NotAvailable,
		MarketOdds:    NotAvailable,
		ZigmaOdds:     NotAvailable,
		Liquidity:     NotAvailable,
	}
}

// MarketSnapshot is the market state reported by a single DEBUG line.
type MarketSnapshot struct {
	MarketID  string  `json:"marketId"`
	Market    string  `json:"market"`
	YesPrice  float64 `json:"yesPrice"`
	WinProb   float64 `json:"winProb"`
	Action    string  `json:"action"`
	Liquidity float64 `json:"liquidity"`
	Edge      float64 `json:"edge"` // |winProb - yesPrice| * 100
}

// ParseResult is everything one pass over the cycle log produced.
type ParseResult struct {
	Signals            []Signal         `json:"signals"`
	Markets            []MarketSnapshot `json:"markets"`
	LastCycleTimestamp string           `json:"lastCycleTimestamp"`
}

// FeedStats summarises a window of signals and snapshots.
type FeedStats struct {
	Signals int            `json:"signals"`
	Markets int            `json:"markets"`
	AvgEdge float64        `json:"avgEdge"`
	MaxEdge float64        `json:"maxEdge"`
	Actions map[string]int `json:"actions"`
}

// SignalRecord is a signal as kept by the history store.
type SignalRecord struct {
	Signal
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observedAt"`
}
