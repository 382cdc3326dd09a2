package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ZigmaPulse/internal/service/ratelimit"
	"ZigmaPulse/internal/usecase"
	"ZigmaPulse/pkg/config"
	xhttp "ZigmaPulse/pkg/http"
	pkgkafka "ZigmaPulse/pkg/kafka"
	applogger "ZigmaPulse/pkg/logger"
	"ZigmaPulse/pkg/queue"
	"ZigmaPulse/pkg/trace"
)

// Closer releases one infrastructure client on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// Deps are the runnable parts of the app. Everything but Handler is optional.
type Deps struct {
	Handler   xhttp.Handler
	Limiter   *ratelimit.Limiter
	Collector *usecase.LogCollector
	Consumer  *pkgkafka.Consumer
	Queue     *queue.RedisQueue
	Poller    *usecase.SignalPoller
	// Closers run in order after every component has stopped.
	Closers   []Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	deps       Deps
	httpServer *xhttp.Server
	cancel     context.CancelFunc
}

func New(cfg *config.Config, l *applogger.Logger, deps Deps) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, deps: deps}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := a.Start(context.Background()); err != nil {
		return err
	}
	<-sigCh
	a.l.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(ctx)
}

// Start launches every configured component and the HTTP server.
func (a *App) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(a.cfg.Server.CORSOrigins...),
		xhttp.WithSlowRequest(a.cfg.Server.SlowRequest),
		xhttp.WithLogger(a.l),
	}
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	opts = append(opts, xhttp.WithMetricsPath(metricsPath))
	a.httpServer = xhttp.NewServer(a.deps.Handler, opts...)

	if q := a.deps.Queue; q != nil {
		if err := q.Start(); err != nil {
			cancel()
			return err
		}
		a.l.Info("queue started")
	}

	if c := a.deps.Collector; c != nil {
		if err := c.Start(ctx); err != nil {
			// the collector keeps no state yet; the API still serves pull sources
			a.l.Error("collector start failed", applogger.Error(err))
		} else {
			a.l.Info("collector started", applogger.Strings("agents", a.cfg.Agent.Stream.Agents))
		}
	}

	if c := a.deps.Consumer; c != nil {
		go func() {
			if err := c.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.LogsTopic))
	}

	if p := a.deps.Poller; p != nil {
		p.Start(ctx)
		a.l.Info("poller started", applogger.Duration("interval", a.cfg.Poller.Interval))
	}

	if lim := a.deps.Limiter; lim != nil {
		go a.sweepLimiter(ctx, lim)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		cancel()
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))
	return nil
}

func (a *App) sweepLimiter(ctx context.Context, lim *ratelimit.Limiter) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := lim.Sweep(); n > 0 {
				a.l.Debug("ratelimit swept idle clients", applogger.Int("count", n))
			}
		}
	}
}

// Shutdown stops producers of work before their sinks: HTTP, poller and
// collector first, then consumer and queue, then the clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	if p := a.deps.Poller; p != nil {
		if err := p.Stop(ctx); err != nil {
			a.l.Warn("poller stop error", applogger.Error(err))
		}
	}
	if c := a.deps.Collector; c != nil {
		if err := c.Shutdown(ctx); err != nil {
			a.l.Warn("collector stop error", applogger.Error(err))
		}
		c.Processor().Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if c := a.deps.Consumer; c != nil {
		if err := c.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if q := a.deps.Queue; q != nil {
		if err := q.Stop(ctx); err != nil {
			a.l.Warn("queue stop error", applogger.Error(err))
		}
	}
	if err := trace.Shutdown(ctx); err != nil {
		a.l.Warn("trace shutdown error", applogger.Error(err))
	}

	// the collector may still publish a final digest through the producer
	a.l.RemoveCollector()
	for _, c := range a.deps.Closers {
		if err := c.Close(); err != nil {
			a.l.Warn(c.Name+" close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
