package usecase

import (
	"context"

	"ZigmaPulse/internal/domain/models"
	drepo "ZigmaPulse/internal/domain/repository"
	mid "ZigmaPulse/internal/middleware"
	applogger "ZigmaPulse/pkg/logger"
)

// LogCollector reads the live agent stream and feeds the ingest pipeline.
type LogCollector struct {
	stream  drepo.LogStream
	proc    *LogProcessor
	pipe    *mid.LogPipeline
	metrics drepo.Metrics
	logger  *applogger.Logger
}

func NewLogCollector(stream drepo.LogStream, proc *LogProcessor, pipe *mid.LogPipeline, metrics drepo.Metrics) *LogCollector {
	return &LogCollector{stream: stream, proc: proc, pipe: pipe, metrics: metrics, logger: applogger.Nop()}
}

func (c *LogCollector) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.logger = l
	}
}

func (c *LogCollector) IsConnected() bool { return c.stream.IsConnected() }

func (c *LogCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	go c.run(ctx)
	return nil
}

// run reads until ctx ends, reconnecting whenever the stream breaks.
func (c *LogCollector) run(ctx context.Context) {
	for {
		lines, errs := c.stream.Read(ctx)
		err := c.consume(ctx, lines, errs)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.logger.Warn("collector.stream broken, reconnecting", applogger.Error(err))
		for {
			rerr := c.stream.Reconnect(ctx)
			if rerr == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("stream_reconnect")
			c.logger.Error("collector.reconnect failed", applogger.Error(rerr))
		}
	}
}

func (c *LogCollector) consume(ctx context.Context, lines <-chan *models.LogLine, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
			errs = nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			var err error
			if c.pipe != nil {
				err = c.pipe.Process(ctx, l)
			} else {
				err = c.proc.Process(ctx, l)
			}
			if err != nil {
				c.logger.Debug("collector.process failed", applogger.String("agent", l.Agent), applogger.Error(err))
			}
		}
	}
}

// Processor returns the underlying LogProcessor for lifecycle management.
func (c *LogCollector) Processor() *LogProcessor { return c.proc }

// Shutdown flushes the pipeline and closes the stream.
func (c *LogCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		if err := c.pipe.Stop(ctx); err != nil {
			c.logger.Warn("collector.pipeline stop", applogger.Error(err))
		}
	}
	return c.stream.Close()
}
