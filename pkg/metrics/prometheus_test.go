package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordParse("agent", 120, 4, 6)
	r.RecordParse("agent", 30, 5, 7)
	r.RecordMessageSent("kafka", "zigma")
	r.RecordError("fetch")
	r.RecordLatestEdge("agent", 7)

	assert.Equal(t, 150.0, testutil.ToFloat64(r.parsedLines.WithLabelValues("agent")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.parsedSignals.WithLabelValues("agent")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.parsedMarkets.WithLabelValues("agent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.linesSent.WithLabelValues("kafka", "zigma")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("fetch")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.lastEdge.WithLabelValues("agent")))
}
