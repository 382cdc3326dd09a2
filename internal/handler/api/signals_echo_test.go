package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drepo "ZigmaPulse/internal/domain/repository"
	"ZigmaPulse/internal/service/cache"
	"ZigmaPulse/internal/service/ratelimit"
	"ZigmaPulse/internal/services/logparse"
	"ZigmaPulse/internal/usecase"
	xlogger "ZigmaPulse/pkg/logger"
	"ZigmaPulse/pkg/metrics"
)

const agentLog = `--- Agent Zigma Cycle: 2025-01-01T00:00:00Z ---
[LLM] Analyzing: btc-100k - Will BTC hit 100k?
📊 SIGNAL: BUY YES (80%) | Exposure: 3.00%
DEBUG: Market Will BTC hit 100k, yesPrice 0.65, action BUY YES, winProb 0.72, betPrice 0.65, liquidity 125000.50`

type stubSource struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchLogs(context.Context) (string, error) {
	s.calls++
	return s.text, s.err
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, src *stubSource, c cache.BytesCache, lim *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	feed := usecase.NewSignalFeed([]drepo.LogSource{src}, logparse.NewParser(), metrics.Nop{})
	h := NewSignalsEchoHandler(
		xlogger.Nop(),
		feed,
		usecase.NewOverviewUseCase(feed, time.Second),
		usecase.NewHistoryUseCase(nil),
		c,
		lim,
		CacheTTLs{Latest: time.Minute, Feed: time.Minute, Overview: time.Minute},
	)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLatestServesAndCaches(t *testing.T) {
	src := &stubSource{name: "main", text: agentLog}
	e := newTestServer(t, src, cache.NewTTLCache(), nil)

	rec := do(e, http.MethodGet, "/api/signals/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var sig struct {
		Action     string `json:"action"`
		Confidence string `json:"confidence"`
		MarketID   string `json:"marketId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sig))
	assert.Equal(t, "BUY YES", sig.Action)
	assert.Equal(t, "80", sig.Confidence)
	assert.Equal(t, "btc-100k", sig.MarketID)

	rec2 := do(e, http.MethodGet, "/api/signals/latest", "")
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, rec.Body.String(), rec2.Body.String())
	assert.Equal(t, 1, src.calls)
}

func TestLatestErrors(t *testing.T) {
	cases := []struct {
		name   string
		src    *stubSource
		target string
		status int
	}{
		{"empty log", &stubSource{name: "main", text: "  \n"}, "/api/signals/latest", http.StatusNotFound},
		{"no signal", &stubSource{name: "main", text: "--- Agent Zigma Cycle: x ---"}, "/api/signals/latest", http.StatusNotFound},
		{"unknown source", &stubSource{name: "main", text: agentLog}, "/api/signals/latest?source=other", http.StatusNotFound},
		{"upstream down", &stubSource{name: "main", err: errors.New("refused")}, "/api/signals/latest", http.StatusBadGateway},
		{"bad variant", &stubSource{name: "main", text: agentLog}, "/api/signals/latest?variant=weekly", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestServer(t, tc.src, nil, nil)
			rec := do(e, http.MethodGet, tc.target, "")
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestSignalsAndMarkets(t *testing.T) {
	e := newTestServer(t, &stubSource{name: "main", text: agentLog}, nil, nil)

	rec := do(e, http.MethodGet, "/api/signals?n=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lastCycle":"2025-01-01T00:00:00Z"`)

	rec = do(e, http.MethodGet, "/api/markets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"yesPrice":0.65`)

	rec = do(e, http.MethodGet, "/api/signals?n=500", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseEndpoint(t *testing.T) {
	e := newTestServer(t, &stubSource{name: "main"}, nil, nil)
	body, err := json.Marshal(map[string]interface{}{"log": agentLog, "n": 5})
	require.NoError(t, err)

	rec := do(e, http.MethodPost, "/api/parse", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"market":"Will BTC hit 100k?"`)

	rec = do(e, http.MethodPost, "/api/parse", `{"n": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverviewAndHistory(t *testing.T) {
	e := newTestServer(t, &stubSource{name: "main", text: agentLog}, nil, nil)

	rec := do(e, http.MethodGet, "/api/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"main"`)

	rec = do(e, http.MethodGet, "/api/history/signals", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit(t *testing.T) {
	e := newTestServer(t, &stubSource{name: "main", text: agentLog}, nil, ratelimit.New(0.001, 1))

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/signals", "").Code)
	rec := do(e, http.MethodGet, "/api/signals", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestHealth(t *testing.T) {
	src := &stubSource{name: "main", text: agentLog}
	feed := usecase.NewSignalFeed([]drepo.LogSource{src}, logparse.NewParser(), metrics.Nop{})
	h := NewSignalsEchoHandler(xlogger.Nop(), feed, usecase.NewOverviewUseCase(feed, time.Second),
		usecase.NewHistoryUseCase(nil), nil, nil, CacheTTLs{})
	h.AddHealthCheck("redis", func(context.Context) error { return nil })
	e := echo.New()
	h.RegisterRoutes(e)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "").Code)

	h.AddHealthCheck("clickhouse", func(context.Context) error { return errors.New("down") })
	rec := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"clickhouse":"down"`)
}
