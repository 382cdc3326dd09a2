package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	models "ZigmaPulse/internal/domain/models"
	domrepo "ZigmaPulse/internal/domain/repository"
	"ZigmaPulse/internal/service/cache"
	apimetrics "ZigmaPulse/internal/service/metrics"
	"ZigmaPulse/internal/service/ratelimit"
	"ZigmaPulse/internal/usecase"
	xhttp "ZigmaPulse/pkg/http"
	xlogger "ZigmaPulse/pkg/logger"
)

// CacheTTLs sets how long each GET response stays cached. Zero disables caching.
type CacheTTLs struct {
	Latest   time.Duration
	Feed     time.Duration
	Overview time.Duration
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// SignalsEchoHandler serves the signal feed over Echo.
type SignalsEchoHandler struct {
	logger   *xlogger.Logger
	feed     *usecase.SignalFeed
	overview *usecase.OverviewUseCase
	history  *usecase.HistoryUseCase
	cache    cache.BytesCache
	limiter  *ratelimit.Limiter
	ttls     CacheTTLs
	checks   map[string]HealthCheck
}

func NewSignalsEchoHandler(
	logger *xlogger.Logger,
	feed *usecase.SignalFeed,
	overview *usecase.OverviewUseCase,
	history *usecase.HistoryUseCase,
	c cache.BytesCache,
	limiter *ratelimit.Limiter,
	ttls CacheTTLs,
) *SignalsEchoHandler {
	apimetrics.Register()
	return &SignalsEchoHandler{
		logger:   logger,
		feed:     feed,
		overview: overview,
		history:  history,
		cache:    c,
		limiter:  limiter,
		ttls:     ttls,
		checks:   map[string]HealthCheck{},
	}
}

// AddHealthCheck registers a dependency for /healthz.
func (h *SignalsEchoHandler) AddHealthCheck(name string, fn HealthCheck) {
	h.checks[name] = fn
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/signals/latest", h.Latest, h.rateLimit("latest"))
	g.GET("/signals", h.Signals, h.rateLimit("signals"))
	g.GET("/markets", h.Markets, h.rateLimit("markets"))
	g.GET("/overview", h.Overview, h.rateLimit("overview"))
	g.GET("/history/signals", h.HistorySignals, h.rateLimit("history"))
	g.POST("/parse", h.Parse)
}

func (h *SignalsEchoHandler) Latest(c echo.Context) error {
	req := &models.LatestSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := cache.Key("latest", req.Source, req.Variant)
	return h.cached(c, "latest", key, h.ttls.Latest, func(ctx context.Context) (interface{}, error) {
		return h.feed.Latest(ctx, req.Source, domrepo.NormalizeVariant(req.Variant))
	})
}

func (h *SignalsEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := cache.Key("signals", req.Source, req.Variant, strconv.Itoa(req.N))
	return h.cached(c, "signals", key, h.ttls.Feed, func(ctx context.Context) (interface{}, error) {
		return h.feed.Recent(ctx, req.Source, req.N, domrepo.NormalizeVariant(req.Variant))
	})
}

func (h *SignalsEchoHandler) Markets(c echo.Context) error {
	req := &models.MarketsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := cache.Key("markets", req.Source, strconv.Itoa(req.N))
	return h.cached(c, "markets", key, h.ttls.Feed, func(ctx context.Context) (interface{}, error) {
		return h.feed.Markets(ctx, req.Source, req.N)
	})
}

func (h *SignalsEchoHandler) Overview(c echo.Context) error {
	return h.cached(c, "overview", cache.Key("overview"), h.ttls.Overview, func(ctx context.Context) (interface{}, error) {
		return h.overview.Get(ctx)
	})
}

func (h *SignalsEchoHandler) HistorySignals(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.history.Signals(c.Request().Context(), req.MarketID, req.Limit)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Parse parses log text posted by the caller. It is neither cached nor rate limited.
func (h *SignalsEchoHandler) Parse(c echo.Context) error {
	req := &models.ParseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.feed.ParseText(c.Request().Context(), req.Log, req.N, domrepo.NormalizeVariant(req.Variant))
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, fn := range h.checks {
		if err := fn(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	return xhttp.DataResponse(c, status, map[string]interface{}{
		"sources": h.feed.Sources(),
		"checks":  checks,
	})
}

func (h *SignalsEchoHandler) cached(c echo.Context, endpoint, key string, ttl time.Duration, load func(context.Context) (interface{}, error)) error {
	start := time.Now()
	defer func() { apimetrics.FeedLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()
	ctx := c.Request().Context()

	useCache := h.cache != nil && ttl > 0
	if useCache {
		b, ok, err := h.cache.GetBytes(ctx, key)
		if err != nil {
			h.logger.Warn("api.cache get failed", xlogger.String("key", key), xlogger.Error(err))
		}
		if ok {
			apimetrics.CacheResults.WithLabelValues(endpoint, "hit").Inc()
			return xhttp.BlobResponse(c, b)
		}
		apimetrics.CacheResults.WithLabelValues(endpoint, "miss").Inc()
	}

	data, err := load(ctx)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	body, err := xhttp.EncodedSuccess(data)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	if useCache {
		if err := h.cache.SetBytes(ctx, key, body, ttl); err != nil {
			h.logger.Warn("api.cache set failed", xlogger.String("key", key), xlogger.Error(err))
		}
	}
	return xhttp.BlobResponse(c, body)
}

func (h *SignalsEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	apimetrics.FeedErrors.WithLabelValues(endpoint).Inc()
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("api."+endpoint+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var fe *usecase.FetchError
	switch {
	case errors.Is(err, usecase.ErrSourceNotFound),
		errors.Is(err, usecase.ErrNoLogs),
		errors.Is(err, usecase.ErrNoSignal):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrHistoryDisabled):
		return xhttp.ServiceUnavailableError(err.Error()).WithError(err)
	case errors.As(err, &fe), errors.Is(err, context.DeadlineExceeded):
		return xhttp.UpstreamError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

func (h *SignalsEchoHandler) rateLimit(endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
				apimetrics.RateLimited.WithLabelValues(endpoint).Inc()
				c.Response().Header().Set("Retry-After", "1")
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}
