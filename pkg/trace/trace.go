package trace

import (
	"context"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the tracer. A disabled tracer hands out no-op spans.
type Config struct {
	Enabled     bool
	ServiceName string
	SampleRatio float64
	// Writer receives the exported spans; nil means stdout.
	Writer io.Writer
}

var (
	mu       sync.RWMutex
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
)

// Init installs a global tracer provider exporting to stdout.
func Init(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	opts := []stdouttrace.Option{}
	if cfg.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return err
	}
	name := cfg.ServiceName
	if name == "" {
		name = "zigmapulse"
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)

	mu.Lock()
	provider = tp
	tracer = tp.Tracer(name)
	mu.Unlock()
	return nil
}

// Shutdown flushes pending spans.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider, tracer = nil, nil
	mu.Unlock()
	if tp != nil {
		return tp.Shutdown(ctx)
	}
	return nil
}

func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return tracer != nil
}

// StartSpan starts a span, or returns the span already in ctx when tracing is off.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	mu.RLock()
	t := tracer
	mu.RUnlock()
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.Start(ctx, name, opts...)
}

// Fail marks the span as failed.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the hex trace id of the span in ctx.
func TraceID(ctx context.Context) (string, bool) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", false
	}
	return sc.TraceID().String(), true
}
