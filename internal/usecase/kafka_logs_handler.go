package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"ZigmaPulse/internal/domain/models"
	domrepo "ZigmaPulse/internal/domain/repository"
	"ZigmaPulse/internal/service/cache"
	pkgkafka "ZigmaPulse/pkg/kafka"
)

const (
	landedTTL  = 15 * time.Minute
	sweepEvery = 1024
	sinkBuffer = "buffer"
	sinkStore  = "store"
)

// KafkaLogsHandler consumes agent log lines and lands them in the Redis
// buffer and the ClickHouse log store. Either sink may be nil.
// Lines carrying a seq land in each sink at most once, so a redelivery
// after a partial failure only retries the sink that failed.
type KafkaLogsHandler struct {
	topic   string
	buf     domrepo.LogBuffer
	store   domrepo.LogStore
	metrics domrepo.Metrics

	landed  *cache.TTLCache
	handled atomic.Uint64
}

func NewKafkaLogsHandler(topic string, buf domrepo.LogBuffer, store domrepo.LogStore, metrics domrepo.Metrics) *KafkaLogsHandler {
	return &KafkaLogsHandler{topic: topic, buf: buf, store: store, metrics: metrics, landed: cache.NewTTLCache()}
}

func (h *KafkaLogsHandler) Topic() string { return h.topic }

// incoming message schema: {agent, seq, line, ts}
func (h *KafkaLogsHandler) Handle(ctx context.Context, b []byte) error {
	var l models.LogLine
	if err := json.Unmarshal(b, &l); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode log line: %w", err)
	}
	if l.Agent == "" {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("log line without agent")
	}
	if !l.ReceivedAt.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(l.ReceivedAt).Seconds())
	}
	if h.handled.Add(1)%sweepEvery == 0 {
		h.landed.Sweep()
	}
	batch := []*models.LogLine{&l}
	id := lineID(&l)

	if h.buf != nil && !h.landedIn(ctx, sinkBuffer, id) {
		if err := h.buf.Append(ctx, batch); err != nil {
			h.metrics.RecordError("consumer_buffer")
			return err
		}
		h.markLanded(ctx, sinkBuffer, id)
		h.metrics.RecordMessageSent("redis", l.Agent)
	}
	if h.store != nil && !h.landedIn(ctx, sinkStore, id) {
		start := time.Now()
		err := h.store.StoreBatch(ctx, batch)
		h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
		if err != nil {
			h.metrics.RecordError("consumer_store")
			return err
		}
		h.markLanded(ctx, sinkStore, id)
		h.metrics.RecordMessageSent("clickhouse", l.Agent)
	}
	return nil
}

// lineID is empty for lines without a seq; those are never deduplicated.
func lineID(l *models.LogLine) string {
	if l.Seq == 0 {
		return ""
	}
	return l.Agent + "|" + strconv.FormatUint(l.Seq, 10)
}

func (h *KafkaLogsHandler) landedIn(ctx context.Context, sink, id string) bool {
	if id == "" {
		return false
	}
	_, ok, _ := h.landed.GetBytes(ctx, sink+"|"+id)
	return ok
}

func (h *KafkaLogsHandler) markLanded(ctx context.Context, sink, id string) {
	if id != "" {
		_ = h.landed.SetBytes(ctx, sink+"|"+id, nil, landedTTL)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaLogsHandler)(nil)
