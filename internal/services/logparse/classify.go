package logparse

import "strings"

// LineKind is the role a single log line plays in the cycle log.
type LineKind int

const (
	Unrecognized LineKind = iota
	CycleStart
	AnalyzingStart
	DebugMarketLine
	SignalLine
	EffectiveEdgeLine
)

const (
	cycleAnchor     = "Agent Zigma Cycle:"
	analyzingAnchor = "[LLM] Analyzing:"
	debugAnchor     = "DEBUG: Market"
	signalAnchor    = "📊 SIGNAL:"
	edgeAnchor      = "Effective Edge:"
)

var kindNames = map[LineKind]string{
	Unrecognized:      "unrecognized",
	CycleStart:        "cycle_start",
	AnalyzingStart:    "analyzing_start",
	DebugMarketLine:   "debug_market",
	SignalLine:        "signal",
	EffectiveEdgeLine: "effective_edge",
}

func (k LineKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Classify reports which anchor the line carries. Anchors are checked in a
// fixed priority order and the first one found wins.
func Classify(line string) LineKind {
	switch {
	case strings.Contains(line, cycleAnchor):
		return CycleStart
	case strings.Contains(line, analyzingAnchor):
		return AnalyzingStart
	case strings.Contains(line, debugAnchor):
		return DebugMarketLine
	case strings.Contains(line, signalAnchor):
		return SignalLine
	case strings.Contains(line, edgeAnchor):
		return EffectiveEdgeLine
	default:
		return Unrecognized
	}
}
