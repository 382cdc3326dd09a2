package usecase

import (
	"context"
	"fmt"
	"time"

	"ZigmaPulse/internal/domain/models"
	drepo "ZigmaPulse/internal/domain/repository"
)

// LogProcessor routes ingested lines to the configured backend: Kafka, or
// straight into the Redis buffer.
type LogProcessor struct {
	pub     drepo.LogPublisher
	buf     drepo.LogBuffer
	metrics drepo.Metrics
	backend string
}

func NewLogProcessor(pub drepo.LogPublisher, buf drepo.LogBuffer, metrics drepo.Metrics, backend string) *LogProcessor {
	return &LogProcessor{pub: pub, buf: buf, metrics: metrics, backend: backend}
}

// Process routes a single line.
func (p *LogProcessor) Process(ctx context.Context, l *models.LogLine) error {
	if l == nil {
		return fmt.Errorf("log line is nil")
	}
	return p.ProcessBatch(ctx, []*models.LogLine{l})
}

// ProcessBatch routes lines in one backend call.
func (p *LogProcessor) ProcessBatch(ctx context.Context, lines []*models.LogLine) error {
	if len(lines) == 0 {
		return nil
	}
	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		if p.pub == nil {
			err = fmt.Errorf("kafka publisher not configured")
			break
		}
		err = p.pub.PublishBatch(ctx, lines)
	case "redis":
		if p.buf == nil {
			err = fmt.Errorf("redis buffer not configured")
			break
		}
		err = p.buf.Append(ctx, lines)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}
	for _, l := range lines {
		p.metrics.RecordMessageSent(p.backend, l.Agent)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close releases the publisher.
func (p *LogProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}
