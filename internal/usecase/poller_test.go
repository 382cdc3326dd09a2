package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ZigmaPulse/internal/domain/models"
)

type pollerRig struct {
	src      *fakeSource
	queue    *fakeQueue
	pub      *fakePublisher
	notifier *fakeNotifier
	archiver *fakeArchiver
	metrics  *recMetrics
	poller   *SignalPoller
}

func newPollerRig(opts ...PollerOption) *pollerRig {
	r := &pollerRig{
		src:      &fakeSource{name: "agent", text: cycleOne},
		queue:    &fakeQueue{},
		pub:      &fakePublisher{},
		notifier: &fakeNotifier{},
		archiver: &fakeArchiver{},
		metrics:  newRecMetrics(),
	}
	base := []PollerOption{
		WithQueue(r.queue),
		WithSignalPublisher(r.pub),
		WithNotifier(r.notifier),
		WithArchiver(r.archiver),
	}
	r.poller = NewSignalPoller(newFeed(r.src), nil, 45*time.Second, r.metrics, append(base, opts...)...)
	return r
}

func TestPollerFansOutNewSignalsOnce(t *testing.T) {
	r := newPollerRig()
	ctx := context.Background()

	rep := r.poller.Tick(ctx)
	require.Len(t, rep, 1)
	assert.Equal(t, 2, rep[0].NewSignals)
	assert.True(t, rep[0].NewCycle)
	assert.Equal(t, "logs/agent/x.log", rep[0].ArchiveKey)

	require.Len(t, r.queue.msgs, 1)
	assert.Len(t, r.queue.msgs[0].Result.Signals, 2)
	assert.Len(t, r.queue.msgs[0].Result.Markets, 1)
	assert.Len(t, r.pub.signals, 2)
	assert.Equal(t, []string{"BUY YES"}, r.notifier.actions, "NO_TRADE is not announced")
	assert.Len(t, r.archiver.texts, 1)

	rep = r.poller.Tick(ctx)
	assert.Equal(t, 0, rep[0].NewSignals)
	assert.False(t, rep[0].NewCycle)
	assert.Len(t, r.queue.msgs, 1)
	assert.Len(t, r.pub.signals, 2)
	assert.Len(t, r.archiver.texts, 1)

	r.src.set(cycleTwo)
	rep = r.poller.Tick(ctx)
	assert.Equal(t, 1, rep[0].NewSignals)
	require.Len(t, r.queue.msgs, 2)
	require.Len(t, r.queue.msgs[1].Result.Signals, 1)
	assert.Equal(t, "BUY NO", r.queue.msgs[1].Result.Signals[0].Action)
	assert.Empty(t, r.queue.msgs[1].Result.Markets)
	assert.Equal(t, []string{"BUY YES"}, r.notifier.actions, "last signal of the open cycle waits for enrichment")

	r.src.set(cycleTwo + "\n--- Agent Zigma Cycle: 2025-01-01T00:02:00Z ---")
	rep = r.poller.Tick(ctx)
	assert.True(t, rep[0].NewCycle)
	assert.Len(t, r.queue.msgs, 2)
	assert.Equal(t, []string{"BUY YES", "BUY NO"}, r.notifier.actions)
}

func TestPollerReemitsSignalEnrichedAfterFirstPoll(t *testing.T) {
	r := newPollerRig()
	ctx := context.Background()
	r.src.set(`--- Agent Zigma Cycle: 2025-01-01T00:00:00Z ---
[LLM] Analyzing: btc-100k - Will BTC hit 100k?
📊 SIGNAL: BUY YES (80%) | Exposure: 3.00%`)

	rep := r.poller.Tick(ctx)
	assert.Equal(t, 1, rep[0].NewSignals)
	require.Len(t, r.queue.msgs, 1)
	assert.Equal(t, models.NotAvailable, r.queue.msgs[0].Result.Signals[0].MarketOdds)
	assert.Empty(t, r.notifier.actions)

	r.src.set(cycleOne)
	rep = r.poller.Tick(ctx)
	assert.Equal(t, 1, rep[0].NewSignals)
	assert.Equal(t, 1, rep[0].UpdatedSignals)
	require.Len(t, r.queue.msgs, 2)
	upd := r.queue.msgs[1].Result
	require.Len(t, upd.Signals, 2)
	assert.Equal(t, "BUY YES", upd.Signals[0].Action)
	assert.Equal(t, "65.0%", upd.Signals[0].MarketOdds)
	assert.Equal(t, "7.0%", upd.Signals[0].EffectiveEdge)
	assert.Len(t, upd.Markets, 1)

	require.Len(t, r.pub.signals, 3)
	assert.Equal(t, "65.0%", r.pub.signals[1].MarketOdds)
	assert.Equal(t, []string{"BUY YES"}, r.notifier.actions)

	rep = r.poller.Tick(ctx)
	assert.Zero(t, rep[0].NewSignals+rep[0].UpdatedSignals)
	assert.Len(t, r.queue.msgs, 2)
	assert.Equal(t, []string{"BUY YES"}, r.notifier.actions)
}

func TestPollerRepeatedSignalsInOneParse(t *testing.T) {
	r := newPollerRig()
	line := "\n📊 SIGNAL: BUY YES (80%) | Exposure: 3.00%"
	r.src.set("--- Agent Zigma Cycle: T ---" + line + line)
	rep := r.poller.Tick(context.Background())
	assert.Equal(t, 2, rep[0].NewSignals)
	r.src.set("--- Agent Zigma Cycle: T ---" + line + line + line)
	rep = r.poller.Tick(context.Background())
	assert.Equal(t, 1, rep[0].NewSignals)
}

func TestPollerFailingSinkDoesNotStopOthers(t *testing.T) {
	r := newPollerRig()
	r.queue.err = errors.New("redis down")
	r.pub.err = errors.New("kafka down")
	r.archiver.err = errors.New("s3 down")

	rep := r.poller.Tick(context.Background())
	assert.NoError(t, rep[0].Err)
	assert.Equal(t, []string{"BUY YES"}, r.notifier.actions)
	assert.Equal(t, 1, r.metrics.errors["poller_enqueue"])
	assert.Equal(t, 1, r.metrics.errors["poller_publish"])
	assert.Equal(t, 1, r.metrics.errors["poller_archive"])
	assert.Empty(t, rep[0].ArchiveKey)
}

func TestPollerInlineHistoryWithoutQueue(t *testing.T) {
	h := &fakeHistory{}
	src := &fakeSource{name: "agent", text: cycleOne}
	p := NewSignalPoller(newFeed(src), []string{"agent"}, time.Minute, newRecMetrics(), WithHistory(h))
	p.Tick(context.Background())
	require.Len(t, h.saved, 1)
	assert.Equal(t, "agent", h.saved[0].Source)
}

func TestPollerFetchError(t *testing.T) {
	r := newPollerRig()
	r.src.err = errDown
	rep := r.poller.Tick(context.Background())
	var fe *FetchError
	assert.ErrorAs(t, rep[0].Err, &fe)
	assert.Empty(t, r.queue.msgs)
}

func TestPollerStartStop(t *testing.T) {
	r := newPollerRig()
	r.poller.Start(context.Background())
	assert.Eventually(t, func() bool {
		r.pub.mu.Lock()
		defer r.pub.mu.Unlock()
		return len(r.pub.signals) == 2
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, r.poller.Stop(context.Background()))
	require.NoError(t, r.poller.Stop(context.Background()))
}

func TestSignalKeysCountOccurrences(t *testing.T) {
	a := *models.NewSignal("Q", "m", "BUY YES", "80", "3", "T")
	b := *models.NewSignal("Q", "m", "SELL", "60", "1", "T")
	assert.Equal(t, []string{
		"agent|T|m|Q|BUY YES|0",
		"agent|T|m|Q|SELL|0",
		"agent|T|m|Q|BUY YES|1",
	}, signalKeys("agent", []models.Signal{a, b, a}))
}

func TestPersistJob(t *testing.T) {
	h := &fakeHistory{}
	j := NewPersistJob(h)
	assert.Equal(t, PersistJobType, j.Type())

	payload := PersistPayload{Source: "agent", Result: models.ParseResult{LastCycleTimestamp: "T"}}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, j.Handle(context.Background(), json.RawMessage(raw)))
	require.Len(t, h.saved, 1)
	assert.Equal(t, "T", h.saved[0].Result.LastCycleTimestamp)

	assert.Error(t, j.Handle(context.Background(), json.RawMessage(`{"source":""}`)))
}
