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

// CHHistoryStore implements HistoryStore backed by ClickHouse.
type CHHistoryStore struct {
	ch  *pkgch.Client
	l   *applogger.Logger
	now func() time.Time
}

func NewCHHistoryStore(ch *pkgch.Client) *CHHistoryStore {
	return &CHHistoryStore{ch: ch, l: applogger.Nop(), now: time.Now}
}

var _ domrepo.HistoryStore = (*CHHistoryStore)(nil)

func (s *CHHistoryStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHHistoryStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS zigma_signals (
            observed_at    DateTime64(3, 'UTC'),
            source         LowCardinality(String),
            cycle          String,
            market_id      String,
            market         String,
            action         LowCardinality(String),
            confidence     String,
            exposure       String,
            effective_edge String,
            entropy        String,
            conviction     String,
            market_odds    String,
            zigma_odds     String,
            liquidity      String
        ) ENGINE = ReplacingMergeTree
        ORDER BY (source, market_id, cycle, action)`,
		`CREATE TABLE IF NOT EXISTS zigma_snapshots (
            observed_at DateTime64(3, 'UTC'),
            source      LowCardinality(String),
            cycle       String,
            market_id   String,
            market      String,
            yes_price   Float64,
            win_prob    Float64,
            action      LowCardinality(String),
            liquidity   Float64,
            edge        Float64
        ) ENGINE = MergeTree
        ORDER BY (source, market_id, observed_at)`,
	})
}

func (s *CHHistoryStore) SaveParse(ctx context.Context, source string, res models.ParseResult) error {
	ts := s.now().UTC()
	sigRows := make([][]any, 0, len(res.Signals))
	for _, g := range res.Signals {
		sigRows = append(sigRows, []any{ts, source, g.Timestamp, g.MarketID, g.Market, g.Action, g.Confidence, g.Exposure,
			g.EffectiveEdge, g.Entropy, g.Conviction, g.MarketOdds, g.ZigmaOdds, g.Liquidity})
	}
	const sigQ = `INSERT INTO zigma_signals (observed_at, source, cycle, market_id, market, action, confidence, exposure,
        effective_edge, entropy, conviction, market_odds, zigma_odds, liquidity)`
	if err := s.ch.InsertBatch(ctx, sigQ, sigRows); err != nil {
		s.l.Error("clickhouse save_signals error", applogger.String("source", source), applogger.Error(err))
		return fmt.Errorf("save signals: %w", err)
	}

	snapRows := make([][]any, 0, len(res.Markets))
	for _, m := range res.Markets {
		snapRows = append(snapRows, []any{ts, source, res.LastCycleTimestamp, m.MarketID, m.Market, m.YesPrice, m.WinProb, m.Action, m.Liquidity, m.Edge})
	}
	const snapQ = `INSERT INTO zigma_snapshots (observed_at, source, cycle, market_id, market, yes_price, win_prob, action, liquidity, edge)`
	if err := s.ch.InsertBatch(ctx, snapQ, snapRows); err != nil {
		s.l.Error("clickhouse save_snapshots error", applogger.String("source", source), applogger.Error(err))
		return fmt.Errorf("save snapshots: %w", err)
	}
	return nil
}

// RecentSignals returns the newest signals first. An empty marketID matches all markets.
func (s *CHHistoryStore) RecentSignals(ctx context.Context, marketID string, limit int) ([]models.SignalRecord, error) {
	q := `SELECT observed_at, source, cycle, market_id, market, action, confidence, exposure,
            effective_edge, entropy, conviction, market_odds, zigma_odds, liquidity
        FROM zigma_signals FINAL`
	args := []any{}
	if marketID != "" {
		q += " WHERE market_id = ?"
		args = append(args, marketID)
	}
	q += " ORDER BY observed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.ch.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []models.SignalRecord
	for rows.Next() {
		var r models.SignalRecord
		g := &r.Signal
		if err := rows.Scan(&r.ObservedAt, &r.Source, &g.Timestamp, &g.MarketID, &g.Market, &g.Action, &g.Confidence, &g.Exposure,
			&g.EffectiveEdge, &g.Entropy, &g.Conviction, &g.MarketOdds, &g.ZigmaOdds, &g.Liquidity); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *CHHistoryStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHHistoryStore) Close() error { return nil }
