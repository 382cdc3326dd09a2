package logparse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const num = `(-?\d+(?:\.\d+)?)`

var (
	cycleRe     = regexp.MustCompile(`Agent Zigma Cycle:(.*)$`)
	analyzingRe = regexp.MustCompile(`\[LLM\] Analyzing:\s*(.+?)\s*$`)
	signalRe    = regexp.MustCompile(`📊 SIGNAL:\s*(.+?)\s*\((\d+)%\)\s*\|\s*Exposure:\s*(\d+(?:\.\d+)?)%`)
	debugRe     = regexp.MustCompile(`DEBUG: Market (.+?), yesPrice ` + num + `, action (.+?), winProb ` + num +
		`, betPrice ` + num + `, liquidity ` + num)
	edgeRe = regexp.MustCompile(`Effective Edge:\s*` + num + `%\s*\(raw\s*` + num + `%,\s*conf\s*` + num +
		`,\s*entropy\s*` + num + `,\s*liqFactor\s*` + num + `\)`)
)

// AnalyzingFields is the market context announced before a signal.
type AnalyzingFields struct {
	MarketID string
	Question string
}

// SignalFields are the mandatory parts of a signal line, kept as written.
type SignalFields struct {
	Action     string
	Confidence string
	Exposure   string
}

// DebugFields carry one market snapshot. BetPrice is validated but unused.
type DebugFields struct {
	Market    string
	YesPrice  decimal.Decimal
	Action    string
	WinProb   decimal.Decimal
	Liquidity decimal.Decimal
}

// EdgeFields are already rendered for display.
type EdgeFields struct {
	EffectiveEdge string
	Entropy       string
	Conviction    string
}

// ExtractCycle returns the cycle timestamp without the trailing dashes.
func ExtractCycle(line string) (string, bool) {
	m := cycleRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	ts := strings.TrimSpace(m[1])
	ts = strings.TrimSpace(strings.TrimSuffix(ts, "---"))
	if ts == "" {
		return "", false
	}
	return ts, true
}

func ExtractAnalyzing(line string) (AnalyzingFields, bool) {
	m := analyzingRe.FindStringSubmatch(line)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return AnalyzingFields{}, false
	}
	parts := strings.Split(m[1], " - ")
	if len(parts) == 1 {
		return AnalyzingFields{Question: strings.TrimSpace(parts[0])}, true
	}
	return AnalyzingFields{
		MarketID: strings.TrimSpace(parts[0]),
		Question: strings.TrimSpace(strings.Join(parts[1:], " - ")),
	}, true
}

func ExtractSignal(line string) (SignalFields, bool) {
	m := signalRe.FindStringSubmatch(line)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return SignalFields{}, false
	}
	return SignalFields{Action: strings.TrimSpace(m[1]), Confidence: m[2], Exposure: m[3]}, true
}

func ExtractDebugMarket(line string) (DebugFields, bool) {
	m := debugRe.FindStringSubmatch(line)
	if m == nil {
		return DebugFields{}, false
	}
	nums, ok := decimals(m[2], m[4], m[5], m[6])
	if !ok {
		return DebugFields{}, false
	}
	return DebugFields{
		Market:    strings.TrimSpace(m[1]),
		YesPrice:  nums[0],
		Action:    strings.TrimSpace(m[3]),
		WinProb:   nums[1],
		Liquidity: nums[3],
	}, true
}

func ExtractEffectiveEdge(line string) (EdgeFields, bool) {
	m := edgeRe.FindStringSubmatch(line)
	if m == nil {
		return EdgeFields{}, false
	}
	nums, ok := decimals(m[1], m[2], m[3], m[4], m[5])
	if !ok {
		return EdgeFields{}, false
	}
	return EdgeFields{
		EffectiveEdge: m[1] + "%",
		Entropy:       m[4],
		Conviction:    formatConviction(nums[2]),
	}, true
}

func decimals(raw ...string) ([]decimal.Decimal, bool) {
	out := make([]decimal.Decimal, 0, len(raw))
	for _, s := range raw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, false
		}
		out = append(out, d)
	}
	return out, true
}
