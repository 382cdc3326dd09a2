package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain/repository.Metrics using Prometheus.
type Recorder struct {
	linesSent     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	parsedLines   *prometheus.CounterVec
	parsedSignals *prometheus.GaugeVec
	parsedMarkets *prometheus.GaugeVec
	lastEdge      *prometheus.GaugeVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		linesSent: f.NewCounterVec(
			prometheus.CounterOpts{Name: "zigma_log_lines_sent_total", Help: "Agent log lines handed to an ingest backend"},
			[]string{"backend", "agent"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{Name: "zigma_errors_total", Help: "Errors by kind"},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "zigma_operation_duration_seconds", Help: "Duration of operations", Buckets: prometheus.DefBuckets},
			[]string{"operation"},
		),
		parsedLines: f.NewCounterVec(
			prometheus.CounterOpts{Name: "zigma_parsed_lines_total", Help: "Log lines fed to the parser"},
			[]string{"source"},
		),
		parsedSignals: f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "zigma_parsed_signals", Help: "Signals found in the last parse"},
			[]string{"source"},
		),
		parsedMarkets: f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "zigma_parsed_markets", Help: "Market snapshots found in the last parse"},
			[]string{"source"},
		),
		lastEdge: f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "zigma_last_market_edge_percent", Help: "Edge of the latest market snapshot"},
			[]string{"source"},
		),
	}
}

// RecordMessageSent counts a log line delivered to backend for agent.
func (r *Recorder) RecordMessageSent(backend, agent string) {
	r.linesSent.WithLabelValues(backend, agent).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordParse(source string, lines, signals, markets int) {
	r.parsedLines.WithLabelValues(source).Add(float64(lines))
	r.parsedSignals.WithLabelValues(source).Set(float64(signals))
	r.parsedMarkets.WithLabelValues(source).Set(float64(markets))
}

func (r *Recorder) RecordLatestEdge(source string, edge float64) {
	r.lastEdge.WithLabelValues(source).Set(edge)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordMessageSent(string, string)  {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLatency(string, float64)     {}
func (Nop) RecordParse(string, int, int, int) {}
func (Nop) RecordLatestEdge(string, float64)  {}
