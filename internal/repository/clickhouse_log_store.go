package repository

import (
	"context"
	"fmt"
	"time"

	"ZigmaPulse/internal/domain/models"
	domrepo "ZigmaPulse/internal/domain/repository"
	pkgch "ZigmaPulse/pkg/clickhouse"
	applogger "ZigmaPulse/pkg/logger"
)

const logsTable = "agent_logs"

// CHLogStore implements LogStore backed by ClickHouse.
type CHLogStore struct {
	ch *pkgch.Client
	l  *applogger.Logger
}

func NewCHLogStore(ch *pkgch.Client) *CHLogStore {
	return &CHLogStore{ch: ch, l: applogger.Nop()}
}

var _ domrepo.LogStore = (*CHLogStore)(nil)

// SetLogger injects a structured logger.
func (s *CHLogStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHLogStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, []string{`
        CREATE TABLE IF NOT EXISTS ` + logsTable + ` (
            ts    DateTime64(3, 'UTC'),
            agent LowCardinality(String),
            seq   UInt64,
            line  String
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMMDD(ts)
        ORDER BY (agent, ts, seq)
        TTL toDateTime(ts) + INTERVAL 30 DAY`,
	})
}

func (s *CHLogStore) StoreBatch(ctx context.Context, lines []*models.LogLine) error {
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		if l == nil || l.Agent == "" {
			continue
		}
		ts := l.ReceivedAt
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		rows = append(rows, []any{ts, l.Agent, l.Seq, l.Text})
	}
	if err := s.ch.InsertBatch(ctx, "INSERT INTO "+logsTable+" (ts, agent, seq, line)", rows); err != nil {
		s.l.Error("clickhouse store_logs error", applogger.Int("rows", len(rows)), applogger.Error(err))
		return fmt.Errorf("store logs: %w", err)
	}
	return nil
}

// Tail returns the newest n lines of agent, oldest first.
func (s *CHLogStore) Tail(ctx context.Context, agent string, n int) ([]string, error) {
	if n <= 0 {
		n = defaultBufferCap
	}
	const q = `
        SELECT line FROM (
            SELECT ts, seq, line FROM ` + logsTable + `
            WHERE agent = ?
            ORDER BY ts DESC, seq DESC
            LIMIT ?
        ) ORDER BY ts ASC, seq ASC`
	rows, err := s.ch.DB().QueryContext(ctx, q, agent, n)
	if err != nil {
		s.l.Error("clickhouse tail_logs query error", applogger.String("agent", agent), applogger.Error(err))
		return nil, fmt.Errorf("tail logs: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, n)
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHLogStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

// Close is a no-op; the client is owned by the caller.
func (s *CHLogStore) Close() error { return nil }
