package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ZigmaPulse/internal/domain/models"
	drepo "ZigmaPulse/internal/domain/repository"
	domsvc "ZigmaPulse/internal/domain/service"
	"ZigmaPulse/internal/services/logparse"
	applogger "ZigmaPulse/pkg/logger"
	"ZigmaPulse/pkg/trace"
)

// SignalFeed reads log sources and serves parsed selections of them.
type SignalFeed struct {
	sources map[string]drepo.LogSource
	order   []string
	parser  domsvc.SignalParser
	metrics drepo.Metrics
	logger  *applogger.Logger
}

func NewSignalFeed(sources []drepo.LogSource, parser domsvc.SignalParser, metrics drepo.Metrics) *SignalFeed {
	f := &SignalFeed{
		sources: make(map[string]drepo.LogSource, len(sources)),
		parser:  parser,
		metrics: metrics,
		logger:  applogger.Nop(),
	}
	for _, s := range sources {
		if _, dup := f.sources[s.Name()]; dup {
			continue
		}
		f.sources[s.Name()] = s
		f.order = append(f.order, s.Name())
	}
	return f
}

func (f *SignalFeed) SetLogger(l *applogger.Logger) {
	if l != nil {
		f.logger = l
	}
}

// Sources lists source names in configuration order.
func (f *SignalFeed) Sources() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// resolve maps "" to the first configured source.
func (f *SignalFeed) resolve(name string) (drepo.LogSource, error) {
	if name == "" {
		if len(f.order) == 0 {
			return nil, ErrSourceNotFound
		}
		name = f.order[0]
	}
	s, ok := f.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	return s, nil
}

// Snapshot is one fetch-and-parse pass over a source.
type Snapshot struct {
	Source string
	Text   string
	Result models.ParseResult
}

// Fetch reads source and parses it with the policy of v.
func (f *SignalFeed) Fetch(ctx context.Context, source string, v drepo.Variant) (Snapshot, error) {
	src, err := f.resolve(source)
	if err != nil {
		return Snapshot{}, err
	}
	ctx, span := trace.StartSpan(ctx, "feed.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("source", src.Name()), attribute.String("variant", string(v)))

	start := time.Now()
	text, err := src.FetchLogs(ctx)
	f.metrics.RecordLatency("fetch_logs", time.Since(start).Seconds())
	if err != nil {
		f.metrics.RecordError("fetch")
		trace.Fail(span, err)
		f.logger.Warn("feed.fetch failed", applogger.String("source", src.Name()), applogger.Error(err))
		return Snapshot{}, &FetchError{Source: src.Name(), Err: err}
	}

	res := f.parse(ctx, src.Name(), text, v)
	span.SetAttributes(attribute.Int("signals", len(res.Signals)), attribute.Int("markets", len(res.Markets)))
	return Snapshot{Source: src.Name(), Text: text, Result: res}, nil
}

func (f *SignalFeed) parse(ctx context.Context, source, text string, v drepo.Variant) models.ParseResult {
	_, span := trace.StartSpan(ctx, "feed.parse")
	defer span.End()

	start := time.Now()
	res := f.parser.Parse(text, drepo.PolicyFor(v).DefaultMarket)
	f.metrics.RecordLatency("parse", time.Since(start).Seconds())
	f.metrics.RecordParse(source, strings.Count(text, "\n")+1, len(res.Signals), len(res.Markets))
	if n := len(res.Markets); n > 0 {
		f.metrics.RecordLatestEdge(source, res.Markets[n-1].Edge)
	}
	return res
}

// Latest returns the most recent signal of source.
func (f *SignalFeed) Latest(ctx context.Context, source string, v drepo.Variant) (*models.Signal, error) {
	snap, err := f.Fetch(ctx, source, v)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(snap.Text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoLogs, snap.Source)
	}
	last := logparse.LastSignals(snap.Result.Signals, 1)
	if len(last) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSignal, snap.Source)
	}
	return &last[0], nil
}

// Recent returns the trailing n signals; n <= 0 uses the variant window.
func (f *SignalFeed) Recent(ctx context.Context, source string, n int, v drepo.Variant) (*models.FeedPage, error) {
	snap, err := f.Fetch(ctx, source, v)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = drepo.PolicyFor(v).Window
	}
	win := logparse.Window(snap.Result, n, n)
	return &models.FeedPage{
		Source:    snap.Source,
		LastCycle: win.LastCycleTimestamp,
		Signals:   win.Signals,
		Stats:     logparse.Stats(win),
	}, nil
}

// Markets returns the trailing n market snapshots.
func (f *SignalFeed) Markets(ctx context.Context, source string, n int) (*models.MarketsPage, error) {
	snap, err := f.Fetch(ctx, source, drepo.VariantFeed)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = drepo.PolicyFor(drepo.VariantLogs).Window
	}
	win := logparse.Window(snap.Result, n, n)
	return &models.MarketsPage{
		Source:    snap.Source,
		LastCycle: win.LastCycleTimestamp,
		Markets:   win.Markets,
		Stats:     logparse.Stats(win),
	}, nil
}

// ParseText parses caller supplied text and trims both sequences to n.
func (f *SignalFeed) ParseText(ctx context.Context, text string, n int, v drepo.Variant) models.ParseResult {
	if n <= 0 {
		n = drepo.PolicyFor(v).Window
	}
	return logparse.Window(f.parse(ctx, "inline", text, v), n, n)
}
