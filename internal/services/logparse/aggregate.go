package logparse

import (
	"strings"

	"ZigmaPulse/internal/domain/models"
)

// Options tune one aggregation pass.
type Options struct {
	// DefaultMarket labels signals that appear before any "[LLM] Analyzing:" line.
	DefaultMarket string
}

// Parse splits text into lines and aggregates them.
func Parse(text string, opts Options) models.ParseResult {
	return Aggregate(strings.Split(text, "\n"), opts)
}

// Aggregate walks the lines once, in order. Enrichment lines always update the
// most recently created signal, whatever market it belongs to.
func Aggregate(lines []string, opts Options) models.ParseResult {
	var (
		cycle    string
		marketID string
		question = opts.DefaultMarket
		current  *models.Signal
		signals  []*models.Signal
	)
	markets := make([]models.MarketSnapshot, 0)

	for _, raw := range lines {
		line := strings.TrimSuffix(raw, "\r")
		switch Classify(line) {
		case CycleStart:
			if ts, ok := ExtractCycle(line); ok {
				cycle = ts
			}
		case AnalyzingStart:
			if f, ok := ExtractAnalyzing(line); ok {
				marketID, question = f.MarketID, f.Question
			}
		case SignalLine:
			f, ok := ExtractSignal(line)
			if !ok {
				continue
			}
			current = models.NewSignal(question, marketID, f.Action, f.Confidence, f.Exposure, cycle)
			signals = append(signals, current)
		case DebugMarketLine:
			f, ok := ExtractDebugMarket(line)
			if !ok {
				continue
			}
			yes, _ := f.YesPrice.Float64()
			win, _ := f.WinProb.Float64()
			liq, _ := f.Liquidity.Float64()
			markets = append(markets, models.MarketSnapshot{
				MarketID:  marketID,
				Market:    truncateDisplay(f.Market),
				YesPrice:  yes,
				WinProb:   win,
				Action:    f.Action,
				Liquidity: liq,
				Edge:      edgeOf(f.YesPrice, f.WinProb),
			})
			if current != nil {
				current.MarketOdds = formatOdds(f.YesPrice)
				current.ZigmaOdds = formatOdds(f.WinProb)
				current.Liquidity = formatLiquidity(f.Liquidity)
			}
		case EffectiveEdgeLine:
			f, ok := ExtractEffectiveEdge(line)
			if !ok || current == nil {
				continue
			}
			current.EffectiveEdge = f.EffectiveEdge
			current.Entropy = f.Entropy
			current.Conviction = f.Conviction
		}
	}

	out := models.ParseResult{
		Signals:            make([]models.Signal, 0, len(signals)),
		Markets:            markets,
		LastCycleTimestamp: cycle,
	}
	for _, s := range signals {
		out.Signals = append(out.Signals, *s)
	}
	return out
}

// Parser adapts the package functions to the service interface.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (Parser) Parse(text, defaultMarket string) models.ParseResult {
	return Parse(text, Options{DefaultMarket: defaultMarket})
}
