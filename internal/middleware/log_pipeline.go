package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ZigmaPulse/internal/domain/models"
	domrepo "ZigmaPulse/internal/domain/repository"
	applogger "ZigmaPulse/pkg/logger"
)

// Proc is the downstream the pipeline hands batches to.
type Proc interface {
	ProcessBatch(ctx context.Context, lines []*models.LogLine) error
}

var (
	ErrInvalidLine = errors.New("invalid log line")
	ErrLineTooLong = errors.New("log line too long")
	ErrBufferFull  = errors.New("pipeline retry buffer full")
)

// LogPipeline sits between the agent stream and the ingest backend.
// It validates lines, paces each agent to maxLPS, batches, and keeps failed
// batches in a bounded retry buffer. Pacing blocks, it never drops lines.
// Batches reach downstream in the order they were cut: while a failed batch
// waits for retry, newer ones queue behind it.
type LogPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	logger  *applogger.Logger

	maxLPS       int
	batchSize    int
	batchTimeout time.Duration
	maxLineBytes int
	bufLines     int

	mu       sync.Mutex
	pending  []*models.LogLine
	limiters map[string]*rate.Limiter

	sendMu  sync.Mutex // held across downstream sends; guards backlog
	backlog [][]*models.LogLine
	slots   int

	wake    chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

type PipelineOption func(*LogPipeline)

// WithMaxLPS caps lines per second per agent; 0 disables pacing.
func WithMaxLPS(n int) PipelineOption {
	return func(p *LogPipeline) {
		if n >= 0 {
			p.maxLPS = n
		}
	}
}

func WithBatch(size int, timeout time.Duration) PipelineOption {
	return func(p *LogPipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if timeout > 0 {
			p.batchTimeout = timeout
		}
	}
}

func WithMaxLineBytes(n int) PipelineOption {
	return func(p *LogPipeline) {
		if n > 0 {
			p.maxLineBytes = n
		}
	}
}

// WithBufferLines bounds how many lines wait for retry when downstream fails.
func WithBufferLines(n int) PipelineOption {
	return func(p *LogPipeline) {
		if n > 0 {
			p.bufLines = n
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *LogPipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewLogPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *LogPipeline {
	p := &LogPipeline{
		proc:         proc,
		metrics:      metrics,
		logger:       applogger.Nop(),
		maxLPS:       500,
		batchSize:    100,
		batchTimeout: time.Second,
		maxLineBytes: 64 * 1024,
		bufLines:     5000,
		limiters:     make(map[string]*rate.Limiter),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.slots = p.bufLines / p.batchSize
	if p.slots < 1 {
		p.slots = 1
	}
	p.wake = make(chan struct{}, 1)
	return p
}

// Start launches the batch timer and the retry loop.
func (p *LogPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.batchTimeout)
		defer ticker.Stop()
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				_ = p.drain(ctx)
				_ = p.Flush(ctx)
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = p.Flush(ctx)
			case <-p.wake:
				if err := p.drain(ctx); err != nil {
					p.metrics.RecordError("pipeline_retry")
					if backoff < 2*time.Second {
						backoff *= 2
					}
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					case <-ctx.Done():
						return
					}
					p.signalRetry()
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

// Stop flushes what is pending and waits for the loop to exit.
func (p *LogPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process validates l, waits for the agent's pace and adds it to the batch.
// A full batch is flushed synchronously.
func (p *LogPipeline) Process(ctx context.Context, l *models.LogLine) error {
	if err := p.validate(l); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if strings.TrimSpace(l.Text) == "" {
		return nil
	}
	if lim := p.limiter(l.Agent); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return fmt.Errorf("pipeline pace: %w", err)
		}
	}
	if l.ReceivedAt.IsZero() {
		l.ReceivedAt = time.Now().UTC()
	}

	p.mu.Lock()
	p.pending = append(p.pending, l)
	var batch []*models.LogLine
	if len(p.pending) >= p.batchSize {
		batch = p.pending
		p.pending = nil
	}
	p.mu.Unlock()

	if batch != nil {
		return p.flush(ctx, batch)
	}
	return nil
}

// Flush sends whatever is pending.
func (p *LogPipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return p.flush(ctx, batch)
}

// Buffered reports how many batches wait for retry.
func (p *LogPipeline) Buffered() int {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return len(p.backlog)
}

func (p *LogPipeline) flush(ctx context.Context, batch []*models.LogLine) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if len(p.backlog) > 0 {
		return p.enqueue(batch)
	}
	start := time.Now()
	if err := p.proc.ProcessBatch(ctx, batch); err != nil {
		p.metrics.RecordError("pipeline_process")
		_ = p.enqueue(batch)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// drain resends waiting batches oldest first and stops at the first failure.
func (p *LogPipeline) drain(ctx context.Context) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	for len(p.backlog) > 0 {
		if err := p.proc.ProcessBatch(ctx, p.backlog[0]); err != nil {
			return err
		}
		p.backlog[0] = nil
		p.backlog = p.backlog[1:]
	}
	return nil
}

// enqueue appends batch to the backlog; the caller holds sendMu.
func (p *LogPipeline) enqueue(batch []*models.LogLine) error {
	if len(p.backlog) >= p.slots {
		p.metrics.RecordError("pipeline_buffer_full")
		p.logger.Warn("pipeline.buffer full, batch dropped", applogger.Int("lines", len(batch)))
		return ErrBufferFull
	}
	p.backlog = append(p.backlog, batch)
	p.signalRetry()
	return nil
}

func (p *LogPipeline) signalRetry() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *LogPipeline) validate(l *models.LogLine) error {
	if l == nil {
		return fmt.Errorf("%w: nil", ErrInvalidLine)
	}
	if l.Agent == "" {
		return fmt.Errorf("%w: agent empty", ErrInvalidLine)
	}
	l.Text = strings.TrimRight(l.Text, "\r\n")
	if len(l.Text) > p.maxLineBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrLineTooLong, len(l.Text), p.maxLineBytes)
	}
	return nil
}

func (p *LogPipeline) limiter(agent string) *rate.Limiter {
	if p.maxLPS <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.limiters[agent]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.maxLPS), p.maxLPS)
		p.limiters[agent] = lim
	}
	return lim
}
