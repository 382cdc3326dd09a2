package repository

import (
	"context"

	"ZigmaPulse/internal/domain/models"
)

// LogSource yields the raw cycle log text of one agent.
type LogSource interface {
	Name() string
	FetchLogs(ctx context.Context) (string, error)
}

// LogStream delivers live agent log lines.
type LogStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.LogLine, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// LogPublisher hands ingested lines to a downstream backend.
type LogPublisher interface {
	Publish(ctx context.Context, l *models.LogLine) error
	PublishBatch(ctx context.Context, lines []*models.LogLine) error
	Close() error
}

// LogBuffer keeps a capped window of recent lines per agent.
type LogBuffer interface {
	Append(ctx context.Context, lines []*models.LogLine) error
	Tail(ctx context.Context, agent string, n int) ([]string, error)
}

// LogStore persists raw lines for replay.
type LogStore interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, lines []*models.LogLine) error
	Tail(ctx context.Context, agent string, n int) ([]string, error)
	Health(ctx context.Context) error
	Close() error
}

// SignalPublisher fans new signals out to subscribers.
type SignalPublisher interface {
	PublishSignals(ctx context.Context, source string, signals []models.Signal) error
	Close() error
}

// HistoryStore keeps every signal and snapshot ever observed.
type HistoryStore interface {
	Init(ctx context.Context) error
	SaveParse(ctx context.Context, source string, res models.ParseResult) error
	RecentSignals(ctx context.Context, marketID string, limit int) ([]models.SignalRecord, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordMessageSent(backend, agent string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordParse(source string, lines, signals, markets int)
	RecordLatestEdge(source string, edge float64)
}
