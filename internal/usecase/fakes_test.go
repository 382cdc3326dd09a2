package usecase

import (
	"context"
	"errors"
	"sync"

	"ZigmaPulse/internal/domain/models"
	drepo "ZigmaPulse/internal/domain/repository"
	"ZigmaPulse/internal/services/logparse"
	"ZigmaPulse/pkg/metrics"
)

const cycleOne = `--- Agent Zigma Cycle: 2025-01-01T00:00:00Z ---
[LLM] Analyzing: btc-100k - Will BTC hit 100k?
📊 SIGNAL: BUY YES (80%) | Exposure: 3.00%
DEBUG: Market Will BTC hit 100k, yesPrice 0.65, action BUY YES, winProb 0.72, betPrice 0.65, liquidity 125000.50
Effective Edge: 7.0% (raw 7.0%, conf 0.70, entropy 0.20, liqFactor 1.0)
[LLM] Analyzing: eth-5k - Will ETH hit 5k?
📊 SIGNAL: NO_TRADE (0%) | Exposure: 0%`

const cycleTwo = cycleOne + `
--- Agent Zigma Cycle: 2025-01-01T00:01:00Z ---
[LLM] Analyzing: sol-300 - Will SOL hit 300?
📊 SIGNAL: BUY NO (61%) | Exposure: 1.25%`

type fakeSource struct {
	mu   sync.Mutex
	name string
	text string
	err  error
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) FetchLogs(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.err
}

func (s *fakeSource) set(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

type recMetrics struct {
	metrics.Nop
	mu     sync.Mutex
	errors map[string]int
	sent   map[string]int
}

func newRecMetrics() *recMetrics {
	return &recMetrics{errors: map[string]int{}, sent: map[string]int{}}
}

func (m *recMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *recMetrics) RecordMessageSent(backend, _ string) {
	m.mu.Lock()
	m.sent[backend]++
	m.mu.Unlock()
}

func newFeed(sources ...*fakeSource) *SignalFeed {
	srcs := make([]drepo.LogSource, 0, len(sources))
	for _, s := range sources {
		srcs = append(srcs, s)
	}
	return NewSignalFeed(srcs, logparse.NewParser(), metrics.Nop{})
}

var errDown = errors.New("agent down")

type fakeQueue struct {
	mu   sync.Mutex
	msgs []PersistPayload
	err  error
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	if msgType == PersistJobType {
		q.msgs = append(q.msgs, payload.(PersistPayload))
	}
	return nil
}

type fakeHistory struct {
	mu    sync.Mutex
	saved []PersistPayload
	err   error
}

func (h *fakeHistory) Init(context.Context) error { return nil }

func (h *fakeHistory) SaveParse(_ context.Context, source string, res models.ParseResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, PersistPayload{Source: source, Result: res})
	return h.err
}

func (h *fakeHistory) RecentSignals(_ context.Context, marketID string, limit int) ([]models.SignalRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.SignalRecord
	for i := len(h.saved) - 1; i >= 0 && len(out) < limit; i-- {
		for _, s := range h.saved[i].Result.Signals {
			if marketID == "" || s.MarketID == marketID {
				out = append(out, models.SignalRecord{Signal: s, Source: h.saved[i].Source})
			}
		}
	}
	return out, nil
}

func (h *fakeHistory) Health(context.Context) error { return nil }
func (h *fakeHistory) Close() error                 { return nil }

type fakePublisher struct {
	mu      sync.Mutex
	signals []models.Signal
	err     error
}

func (p *fakePublisher) PublishSignals(_ context.Context, _ string, s []models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, s...)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeNotifier struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (n *fakeNotifier) NotifySignal(_ context.Context, _ string, s models.Signal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, s.Action)
	return n.err
}

type fakeArchiver struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (a *fakeArchiver) Archive(_ context.Context, source, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
	if a.err != nil {
		return "", a.err
	}
	return "logs/" + source + "/x.log", nil
}
