package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ZigmaPulse/internal/domain/models"
	drepo "ZigmaPulse/internal/domain/repository"
	domsvc "ZigmaPulse/internal/domain/service"
	"ZigmaPulse/internal/service/cache"
	applogger "ZigmaPulse/pkg/logger"
	"ZigmaPulse/pkg/queue"
	"ZigmaPulse/pkg/trace"
)

const noTrade = "NO_TRADE"

// SignalPoller polls sources on a ticker and fans new signals out.
// Every sink is optional; a failing sink never stops the others.
type SignalPoller struct {
	feed     *SignalFeed
	sources  []string
	interval time.Duration

	queue    queue.QueueService
	history  drepo.HistoryStore
	pub      drepo.SignalPublisher
	notifier domsvc.Notifier
	archiver domsvc.Archiver
	metrics  drepo.Metrics
	logger   *applogger.Logger

	seen      *cache.TTLCache
	seenTTL   time.Duration
	mu        sync.Mutex
	lastCycle map[string]string

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

type PollerOption func(*SignalPoller)

// WithQueue sends persistence through the job queue.
func WithQueue(q queue.QueueService) PollerOption { return func(p *SignalPoller) { p.queue = q } }

// WithHistory persists inline when no queue is set.
func WithHistory(h drepo.HistoryStore) PollerOption { return func(p *SignalPoller) { p.history = h } }

func WithSignalPublisher(pub drepo.SignalPublisher) PollerOption {
	return func(p *SignalPoller) { p.pub = pub }
}

func WithNotifier(n domsvc.Notifier) PollerOption { return func(p *SignalPoller) { p.notifier = n } }

func WithArchiver(a domsvc.Archiver) PollerOption { return func(p *SignalPoller) { p.archiver = a } }

// WithSeenTTL bounds how long an emitted signal is remembered.
func WithSeenTTL(ttl time.Duration) PollerOption {
	return func(p *SignalPoller) {
		if ttl > 0 {
			p.seenTTL = ttl
		}
	}
}

func WithPollerLogger(l *applogger.Logger) PollerOption {
	return func(p *SignalPoller) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewSignalPoller polls sources (all feed sources when empty) every interval.
func NewSignalPoller(feed *SignalFeed, sources []string, interval time.Duration, metrics drepo.Metrics, opts ...PollerOption) *SignalPoller {
	if len(sources) == 0 {
		sources = feed.Sources()
	}
	if interval <= 0 {
		interval = 45 * time.Second
	}
	p := &SignalPoller{
		feed:      feed,
		sources:   sources,
		interval:  interval,
		metrics:   metrics,
		logger:    applogger.Nop(),
		seen:      cache.NewTTLCache(),
		seenTTL:   24 * time.Hour,
		lastCycle: make(map[string]string),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start polls once right away, then on every tick.
func (p *SignalPoller) Start(ctx context.Context) {
	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		p.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.Tick(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight tick.
func (p *SignalPoller) Stop(ctx context.Context) error {
	p.once.Do(func() { close(p.stopCh) })
	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TickReport says what one source produced on a tick. UpdatedSignals
// counts signals emitted earlier whose enrichment changed since.
type TickReport struct {
	Source         string
	NewSignals     int
	UpdatedSignals int
	NewCycle       bool
	ArchiveKey     string
	Err            error
}

// Tick polls every source once.
func (p *SignalPoller) Tick(ctx context.Context) []TickReport {
	p.seen.Sweep()
	out := make([]TickReport, 0, len(p.sources))
	for _, name := range p.sources {
		out = append(out, p.pollSource(ctx, name))
	}
	return out
}

func (p *SignalPoller) pollSource(ctx context.Context, name string) TickReport {
	ctx, span := trace.StartSpan(ctx, "poller.tick")
	defer span.End()

	rep := TickReport{Source: name}
	start := time.Now()
	defer func() { p.metrics.RecordLatency("poll_tick", time.Since(start).Seconds()) }()

	snap, err := p.feed.Fetch(ctx, name, drepo.VariantFeed)
	if err != nil {
		trace.Fail(span, err)
		rep.Err = err
		return rep
	}
	res := snap.Result
	changed := p.changedSignals(name, res.Signals)
	for _, c := range changed {
		if c.fresh {
			rep.NewSignals++
		} else {
			rep.UpdatedSignals++
		}
	}
	markets := p.changedMarkets(name, res.Markets)

	p.mu.Lock()
	rep.NewCycle = res.LastCycleTimestamp != "" && p.lastCycle[name] != res.LastCycleTimestamp
	if rep.NewCycle {
		p.lastCycle[name] = res.LastCycleTimestamp
	}
	p.mu.Unlock()

	if len(changed) == 0 && len(markets) == 0 && !rep.NewCycle {
		return rep
	}
	l := p.logger.With(applogger.String("source", name), applogger.String("cycle", res.LastCycleTimestamp))
	l.Info("poller.tick new data",
		applogger.Int("signals", rep.NewSignals),
		applogger.Int("updated", rep.UpdatedSignals),
		applogger.Bool("new_cycle", rep.NewCycle))

	out := make([]models.Signal, 0, len(changed))
	for _, c := range changed {
		out = append(out, c.sig)
	}
	p.persist(ctx, l, name, models.ParseResult{Signals: out, Markets: markets, LastCycleTimestamp: res.LastCycleTimestamp})

	if p.pub != nil && len(out) > 0 {
		if err := p.pub.PublishSignals(ctx, name, out); err != nil {
			p.metrics.RecordError("poller_publish")
			l.Error("poller.publish failed", applogger.Error(err))
		}
	}
	p.notify(ctx, l, name, res)
	if p.archiver != nil {
		key, err := p.archiver.Archive(ctx, name, snap.Text)
		if err != nil {
			p.metrics.RecordError("poller_archive")
			l.Error("poller.archive failed", applogger.Error(err))
		}
		rep.ArchiveKey = key
	}
	return rep
}

func (p *SignalPoller) persist(ctx context.Context, l *applogger.Logger, name string, delta models.ParseResult) {
	if len(delta.Signals) == 0 && len(delta.Markets) == 0 {
		return
	}
	switch {
	case p.queue != nil:
		if err := p.queue.PublishMessage(ctx, PersistJobType, PersistPayload{Source: name, Result: delta}); err != nil {
			p.metrics.RecordError("poller_enqueue")
			l.Error("poller.enqueue failed", applogger.Error(err))
		}
	case p.history != nil:
		if err := p.history.SaveParse(ctx, name, delta); err != nil {
			p.metrics.RecordError("poller_persist")
			l.Error("poller.persist failed", applogger.Error(err))
		}
	}
}

type trackedSignal struct {
	sig   models.Signal
	fresh bool
}

// changedSignals returns signals not emitted before plus emitted ones whose
// enrichment has changed, in parse order. Identical signals within one parse
// are told apart by their occurrence number.
func (p *SignalPoller) changedSignals(source string, signals []models.Signal) []trackedSignal {
	keys := signalKeys(source, signals)
	var out []trackedSignal
	for i, s := range signals {
		switch p.seen.Put("signal|"+keys[i], enrichment(s), p.seenTTL) {
		case cache.Added:
			out = append(out, trackedSignal{sig: s, fresh: true})
		case cache.Replaced:
			out = append(out, trackedSignal{sig: s})
		}
	}
	return out
}

// changedMarkets returns snapshots whose figures differ from the last ones
// recorded for the same market.
func (p *SignalPoller) changedMarkets(source string, markets []models.MarketSnapshot) []models.MarketSnapshot {
	var out []models.MarketSnapshot
	for _, m := range markets {
		fp := fmt.Sprintf("%s|%g|%g|%g|%g", m.Action, m.YesPrice, m.WinProb, m.Liquidity, m.Edge)
		if p.seen.Put("market|"+source+"|"+m.MarketID, []byte(fp), p.seenTTL) != cache.Unchanged {
			out = append(out, m)
		}
	}
	return out
}

// notify announces each trade signal once, when it has settled: its
// enrichment is complete, a later signal follows it, or its cycle has closed.
func (p *SignalPoller) notify(ctx context.Context, l *applogger.Logger, source string, res models.ParseResult) {
	if p.notifier == nil {
		return
	}
	keys := signalKeys(source, res.Signals)
	last := len(res.Signals) - 1
	for i, s := range res.Signals {
		if s.Action == noTrade {
			continue
		}
		settled := enriched(s) || i < last || s.Timestamp != res.LastCycleTimestamp
		if !settled || p.seen.Put("notified|"+keys[i], nil, p.seenTTL) != cache.Added {
			continue
		}
		if err := p.notifier.NotifySignal(ctx, source, s); err != nil {
			p.metrics.RecordError("poller_notify")
			l.Error("poller.notify failed", applogger.String("market_id", s.MarketID), applogger.Error(err))
		}
	}
}

// signalKeys identifies each signal by source, cycle, market, action and
// occurrence number.
func signalKeys(source string, signals []models.Signal) []string {
	occ := make(map[string]int, len(signals))
	keys := make([]string, len(signals))
	for i, s := range signals {
		base := strings.Join([]string{source, s.Timestamp, s.MarketID, s.Market, s.Action}, "|")
		n := occ[base]
		occ[base] = n + 1
		keys[i] = base + "|" + strconv.Itoa(n)
	}
	return keys
}

func enrichment(s models.Signal) []byte {
	return []byte(strings.Join([]string{s.EffectiveEdge, s.Entropy, s.Conviction, s.MarketOdds, s.ZigmaOdds, s.Liquidity}, "|"))
}

func enriched(s models.Signal) bool {
	return s.MarketOdds != models.NotAvailable && s.EffectiveEdge != models.NotAvailable
}
