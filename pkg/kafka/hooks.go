package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	applogger "ZigmaPulse/pkg/logger"
)

// ConsumerHook defines lifecycle hooks around message handling.
// A BeforeHandle error skips the handler and is treated as a permanent failure.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

// HookError classifies a hook rejection, e.g. ERR_VALIDATION.
type HookError struct {
	Code string
	Err  error
}

func (e *HookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *HookError) Unwrap() error { return e.Err }

// HookChain runs hooks in order before handling and in reverse order after.
// A panicking hook is turned into an ERR_PANIC HookError.
type HookChain struct {
	hooks []ConsumerHook
}

func NewHookChain(hooks ...ConsumerHook) *HookChain {
	filtered := make([]ConsumerHook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return &HookChain{hooks: filtered}
}

func (c *HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	for _, h := range c.hooks {
		nctx, nmsg, ndata, err := safeBefore(h, ctx, topic, km, data)
		if err != nil {
			return ctx, km, data, err
		}
		ctx, km, data = nctx, nmsg, ndata
	}
	return ctx, km, data, nil
}

func (c *HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		func() {
			defer func() { _ = recover() }()
			c.hooks[i].AfterHandle(ctx, topic, km, data, err)
		}()
	}
}

func (c *HookChain) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for _, h := range c.hooks {
		func() {
			defer func() { _ = recover() }()
			h.OnError(ctx, topic, km, data, err)
		}()
	}
}

func safeBefore(h ConsumerHook, ctx context.Context, topic string, km kafka.Message, data []byte) (rctx context.Context, rmsg kafka.Message, rdata []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			rctx, rmsg, rdata = ctx, km, data
			err = &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("hook panic: %v", r)}
		}
	}()
	return h.BeforeHandle(ctx, topic, km, data)
}

type ctxKey string

const (
	CtxStartTime ctxKey = "kafka_hook_start_time"
	CtxTraceID   ctxKey = "kafka_hook_trace_id"
)

// TraceIDHeader carries a correlation id from producer to consumer.
const TraceIDHeader = "trace_id"

// ExtractTraceID returns the trace id header, or "".
func ExtractTraceID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == TraceIDHeader && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}

// TraceIDFrom returns the trace id stored by TracingHook.
func TraceIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(CtxTraceID).(string)
	return s
}

// TracingHook copies the trace id header and the start time into the handler context.
type TracingHook struct{ NoopHook }

func (TracingHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	ctx = context.WithValue(ctx, CtxStartTime, time.Now())
	if id := ExtractTraceID(km); id != "" {
		ctx = context.WithValue(ctx, CtxTraceID, id)
	}
	return ctx, km, data, nil
}

// MaxSizeHook rejects payloads larger than Limit bytes.
type MaxSizeHook struct {
	NoopHook
	Limit int
}

func (h MaxSizeHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	if h.Limit > 0 && len(data) > h.Limit {
		return ctx, km, data, &HookError{Code: "ERR_TOO_LARGE", Err: fmt.Errorf("payload %d bytes > %d", len(data), h.Limit)}
	}
	return ctx, km, data, nil
}

// LoggingHook logs slow handling at warn level.
type LoggingHook struct {
	NoopHook
	L    *applogger.Logger
	Slow time.Duration
}

func (h LoggingHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
	start, ok := ctx.Value(CtxStartTime).(time.Time)
	if !ok || h.L == nil || h.Slow <= 0 {
		return
	}
	if d := time.Since(start); d >= h.Slow {
		h.L.Warn("kafka.consumer handle slow",
			applogger.String("topic", topic),
			applogger.Int64("offset", km.Offset),
			applogger.String("trace_id", TraceIDFrom(ctx)),
			applogger.Duration("duration_ms", d),
			applogger.Bool("failed", err != nil),
		)
	}
}
