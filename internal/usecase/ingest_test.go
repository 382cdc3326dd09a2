package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ZigmaPulse/internal/domain/models"
	mid "ZigmaPulse/internal/middleware"
	"ZigmaPulse/internal/services/logparse"
	"ZigmaPulse/pkg/metrics"
)

type memBuffer struct {
	mu    sync.Mutex
	lines []*models.LogLine
	err   error
}

func (b *memBuffer) Append(_ context.Context, lines []*models.LogLine) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.lines = append(b.lines, lines...)
	return nil
}

func (b *memBuffer) Tail(_ context.Context, agent string, n int) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, l := range b.lines {
		if l.Agent == agent {
			out = append(out, l.Text)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (b *memBuffer) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

type memStore struct {
	memBuffer
}

func (s *memStore) Init(context.Context) error { return nil }
func (s *memStore) StoreBatch(ctx context.Context, lines []*models.LogLine) error {
	return s.Append(ctx, lines)
}
func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

type memLogPublisher struct {
	memBuffer
}

func (p *memLogPublisher) Publish(ctx context.Context, l *models.LogLine) error {
	return p.Append(ctx, []*models.LogLine{l})
}
func (p *memLogPublisher) PublishBatch(ctx context.Context, lines []*models.LogLine) error {
	return p.Append(ctx, lines)
}
func (p *memLogPublisher) Close() error { return nil }

func TestLogProcessorRoutes(t *testing.T) {
	ctx := context.Background()
	pub, buf := &memLogPublisher{}, &memBuffer{}
	m := newRecMetrics()
	lines := []*models.LogLine{{Agent: "zigma", Text: "a"}, {Agent: "zigma", Text: "b"}}

	require.NoError(t, NewLogProcessor(pub, buf, m, "kafka").ProcessBatch(ctx, lines))
	assert.Equal(t, 2, pub.count())
	assert.Equal(t, 0, buf.count())
	assert.Equal(t, 2, m.sent["kafka"])

	require.NoError(t, NewLogProcessor(pub, buf, m, "redis").Process(ctx, lines[0]))
	assert.Equal(t, 1, buf.count())

	assert.Error(t, NewLogProcessor(nil, nil, m, "kafka").ProcessBatch(ctx, lines))
	assert.Error(t, NewLogProcessor(pub, buf, m, "s3").ProcessBatch(ctx, lines))
	assert.Equal(t, 2, m.errors["process_batch"])
	assert.Error(t, NewLogProcessor(pub, buf, m, "redis").Process(ctx, nil))
}

func TestKafkaLogsHandler(t *testing.T) {
	ctx := context.Background()
	buf, store := &memBuffer{}, &memStore{}
	h := NewKafkaLogsHandler("agent.logs", buf, store, metrics.Nop{})
	assert.Equal(t, "agent.logs", h.Topic())

	require.NoError(t, h.Handle(ctx, []byte(`{"agent":"zigma","seq":1,"line":"hello","ts":"2025-01-01T00:00:00Z"}`)))
	assert.Equal(t, 1, buf.count())
	assert.Equal(t, 1, store.count())
	tail, _ := buf.Tail(ctx, "zigma", 10)
	assert.Equal(t, []string{"hello"}, tail)

	assert.Error(t, h.Handle(ctx, []byte(`{bad`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"line":"x"}`)))

	buf.err = errors.New("redis down")
	assert.Error(t, h.Handle(ctx, []byte(`{"agent":"zigma","line":"x"}`)))
	assert.Equal(t, 1, store.count(), "store is not written when the buffer fails")
}

type flakyStore struct {
	memStore
	fails int
}

func (s *flakyStore) StoreBatch(ctx context.Context, lines []*models.LogLine) error {
	if s.fails > 0 {
		s.fails--
		return errors.New("clickhouse down")
	}
	return s.memStore.StoreBatch(ctx, lines)
}

func TestKafkaLogsHandlerRetryAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	buf, store := &memBuffer{}, &flakyStore{fails: 2}
	m := newRecMetrics()
	h := NewKafkaLogsHandler("agent.logs", buf, store, m)

	msg := []byte(`{"agent":"zigma","seq":7,"line":"📊 SIGNAL: BUY YES (80%) | Exposure: 3.00%"}`)
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = h.Handle(ctx, msg); err == nil {
			break
		}
	}
	require.NoError(t, err)
	assert.Equal(t, 1, buf.count())
	assert.Equal(t, 1, store.count())
	assert.Equal(t, 2, m.errors["consumer_store"])

	tail, err := buf.Tail(ctx, "zigma", 0)
	require.NoError(t, err)
	res := logparse.NewParser().Parse(strings.Join(tail, "\n"), "")
	assert.Len(t, res.Signals, 1)

	require.NoError(t, h.Handle(ctx, msg))
	assert.Equal(t, 1, buf.count(), "redelivered line lands once")

	require.NoError(t, h.Handle(ctx, []byte(`{"agent":"zigma","line":"no seq"}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"agent":"zigma","line":"no seq"}`)))
	assert.Equal(t, 3, buf.count(), "lines without seq are not deduplicated")
}

type fakeStream struct {
	mu         sync.Mutex
	connected  bool
	reconnects int
	feeds      []chan *models.LogLine
	errs       []chan error
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Subscribe(context.Context) error { return nil }

func (s *fakeStream) Read(context.Context) (<-chan *models.LogLine, <-chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := make(chan *models.LogLine, 16)
	e := make(chan error, 1)
	s.feeds = append(s.feeds, l)
	s.errs = append(s.errs, e)
	return l, e
}

func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeStream) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feeds)
}

func (s *fakeStream) feed(i int) chan *models.LogLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeds[i]
}

func (s *fakeStream) fail(i int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[i] <- err
}

func TestLogCollectorPipelineAndReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := &memBuffer{}
	proc := NewLogProcessor(nil, buf, metrics.Nop{}, "redis")
	pipe := mid.NewLogPipeline(proc, metrics.Nop{}, mid.WithBatch(2, 20*time.Millisecond), mid.WithMaxLPS(0))
	stream := &fakeStream{}
	c := NewLogCollector(stream, proc, pipe, newRecMetrics())

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsConnected())
	require.Eventually(t, func() bool { return stream.reads() == 1 }, time.Second, 5*time.Millisecond)

	stream.feed(0) <- &models.LogLine{Agent: "zigma", Text: "a"}
	stream.feed(0) <- &models.LogLine{Agent: "zigma", Text: "b"}
	stream.feed(0) <- &models.LogLine{Agent: "zigma", Text: "c"}
	assert.Eventually(t, func() bool { return buf.count() == 3 }, time.Second, 5*time.Millisecond)

	stream.fail(0, errors.New("socket closed"))
	require.Eventually(t, func() bool { return stream.reads() == 2 }, time.Second, 5*time.Millisecond)
	stream.feed(1) <- &models.LogLine{Agent: "zigma", Text: "d"}
	assert.Eventually(t, func() bool { return buf.count() == 4 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Shutdown(context.Background()))
	assert.False(t, c.IsConnected())
	assert.Same(t, proc, c.Processor())
}
