package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"ZigmaPulse/internal/domain/models"
	domrepo "ZigmaPulse/internal/domain/repository"
	pkgkafka "ZigmaPulse/pkg/kafka"
	"ZigmaPulse/pkg/trace"
)

type batchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaLogPublisher implements LogPublisher; lines are keyed by agent so
// each agent's lines stay ordered within one partition.
type KafkaLogPublisher struct {
	producer batchProducer
	topic    string
}

func NewKafkaLogPublisher(producer *pkgkafka.Producer, topic string) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer, topic: topic}
}

var _ domrepo.LogPublisher = (*KafkaLogPublisher)(nil)

func (p *KafkaLogPublisher) Publish(ctx context.Context, l *models.LogLine) error {
	return p.PublishBatch(ctx, []*models.LogLine{l})
}

func (p *KafkaLogPublisher) PublishBatch(ctx context.Context, lines []*models.LogLine) error {
	if len(lines) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(lines))
	for _, l := range lines {
		if l == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{
			Key:     []byte(l.Agent),
			Value:   l,
			Headers: map[string]string{"seq": strconv.FormatUint(l.Seq, 10)},
		})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared and closed by the app.
func (p *KafkaLogPublisher) Close() error { return nil }

// SignalEvent is the payload on the signals topic.
type SignalEvent struct {
	Source string        `json:"source"`
	Signal models.Signal `json:"signal"`
}

// KafkaSignalPublisher implements SignalPublisher keyed by marketId.
type KafkaSignalPublisher struct {
	producer batchProducer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)

func (p *KafkaSignalPublisher) PublishSignals(ctx context.Context, source string, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	traceID, ok := trace.TraceID(ctx)
	if !ok {
		traceID = uuid.NewString()
	}
	msgs := make([]pkgkafka.Message, len(signals))
	for i, s := range signals {
		key := s.MarketID
		if key == "" {
			key = s.Market
		}
		msgs[i] = pkgkafka.Message{
			Key:     []byte(key),
			Value:   SignalEvent{Source: source, Signal: s},
			Headers: map[string]string{pkgkafka.TraceIDHeader: traceID},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op, see KafkaLogPublisher.Close.
func (p *KafkaSignalPublisher) Close() error { return nil }
