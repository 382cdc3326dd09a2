package logparse

import (
	"math"

	"github.com/shopspring/decimal"

	"ZigmaPulse/internal/domain/models"
)

// Last returns a copy of the trailing n items in insertion order.
// n <= 0 selects everything.
func Last[T any](items []T, n int) []T {
	if n <= 0 || n > len(items) {
		n = len(items)
	}
	out := make([]T, n)
	copy(out, items[len(items)-n:])
	return out
}

func LastSignals(signals []models.Signal, n int) []models.Signal { return Last(signals, n) }

func LastMarkets(markets []models.MarketSnapshot, n int) []models.MarketSnapshot {
	return Last(markets, n)
}

// Window trims both sequences of a result to their trailing windows.
func Window(res models.ParseResult, signalsN, marketsN int) models.ParseResult {
	return models.ParseResult{
		Signals:            LastSignals(res.Signals, signalsN),
		Markets:            LastMarkets(res.Markets, marketsN),
		LastCycleTimestamp: res.LastCycleTimestamp,
	}
}

// Edge is |win - yes| * 100.
func Edge(yes, win float64) float64 {
	return edgeOf(decimal.NewFromFloat(yes), decimal.NewFromFloat(win))
}

// Stats summarises a (possibly windowed) result.
func Stats(res models.ParseResult) models.FeedStats {
	st := models.FeedStats{
		Signals: len(res.Signals),
		Markets: len(res.Markets),
		Actions: make(map[string]int),
	}
	for _, s := range res.Signals {
		st.Actions[s.Action]++
	}
	if len(res.Markets) == 0 {
		return st
	}
	var sum float64
	for _, m := range res.Markets {
		sum += m.Edge
		st.MaxEdge = math.Max(st.MaxEdge, m.Edge)
	}
	st.AvgEdge = sum / float64(len(res.Markets))
	return st
}
