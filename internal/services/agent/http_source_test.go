package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ZigmaPulse/pkg/config"
)

func newSource(url string, retries int) *HTTPLogSource {
	return NewHTTPLogSource(
		config.SourceConfig{Name: "agent", Type: "http", URL: url},
		config.AgentConfig{Timeout: time.Second, Retries: retries, RetryDelay: time.Millisecond},
	)
}

func TestFetchLogsBodies(t *testing.T) {
	cases := map[string]string{
		"text/plain":   "line one\nline two",
		"json string":  `{"logs":"line one\nline two"}`,
		"json array":   `{"logs":["line one","line two"]}`,
		"other object": `{"status":"ok"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/logs", r.URL.Path)
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			got, err := newSource(srv.URL+"/", 0).FetchLogs(context.Background())
			require.NoError(t, err)
			if name == "other object" {
				assert.Equal(t, body, got)
				return
			}
			assert.Equal(t, "line one\nline two", got)
		})
	}
}

func TestFetchLogsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	got, err := newSource(srv.URL, 2).FetchLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchLogsClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newSource(srv.URL, 3).FetchLogs(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "agent", newSource(srv.URL, 0).Name())
}
