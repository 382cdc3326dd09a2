package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	FeedLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zigma",
			Subsystem: "api",
			Name:      "feed_latency_seconds",
			Help:      "Latency of feed endpoints, cache hits included",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	FeedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zigma",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by feed endpoint",
		},
		[]string{"endpoint"},
	)

	CacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zigma",
			Subsystem: "api",
			Name:      "cache_results_total",
			Help:      "Response cache lookups by result (hit or miss)",
		},
		[]string{"endpoint", "result"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zigma",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter",
		},
		[]string{"endpoint"},
	)
)

// Register adds the API collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(FeedLatency, FeedErrors, CacheResults, RateLimited)
	})
}
