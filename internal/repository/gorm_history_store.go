package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"ZigmaPulse/internal/domain/models"
	domrepo "ZigmaPulse/internal/domain/repository"
)

// SignalRow is the relational form of a signal. A row is unique per
// source, cycle, market and action; later saves update its enrichment.
type SignalRow struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	ObservedAt    time.Time `gorm:"index"`
	Source        string    `gorm:"index;uniqueIndex:idx_signal_identity"`
	Cycle         string    `gorm:"uniqueIndex:idx_signal_identity"`
	MarketID      string    `gorm:"index;uniqueIndex:idx_signal_identity"`
	Market        string
	Action        string `gorm:"uniqueIndex:idx_signal_identity"`
	Confidence    string
	Exposure      string
	EffectiveEdge string
	Entropy       string
	Conviction    string
	MarketOdds    string
	ZigmaOdds     string
	Liquidity     string
}

func (SignalRow) TableName() string { return "zigma_signals" }

var signalUpsert = clause.OnConflict{
	Columns: []clause.Column{{Name: "source"}, {Name: "cycle"}, {Name: "market_id"}, {Name: "action"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"market", "confidence", "exposure", "effective_edge", "entropy",
		"conviction", "market_odds", "zigma_odds", "liquidity",
	}),
}

// SnapshotRow is the relational form of a market snapshot.
type SnapshotRow struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	ObservedAt time.Time `gorm:"index"`
	Source     string    `gorm:"index"`
	Cycle      string
	MarketID   string `gorm:"index"`
	Market     string
	YesPrice   float64
	WinProb    float64
	Action     string
	Liquidity  float64
	Edge       float64
}

func (SnapshotRow) TableName() string { return "zigma_snapshots" }

// GormHistoryStore implements HistoryStore on Postgres or SQLite.
type GormHistoryStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ domrepo.HistoryStore = (*GormHistoryStore)(nil)

// NewGormHistoryStore opens driver ("postgres" or "sqlite") at dsn.
func NewGormHistoryStore(driver, dsn string) (*GormHistoryStore, error) {
	var dial gorm.Dialector
	switch driver {
	case "postgres":
		dial = postgres.Open(dsn)
	case "sqlite":
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("history driver %q not supported", driver)
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return &GormHistoryStore{db: db, now: time.Now}, nil
}

func (s *GormHistoryStore) Init(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&SignalRow{}, &SnapshotRow{}); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}
	return nil
}

func (s *GormHistoryStore) SaveParse(ctx context.Context, source string, res models.ParseResult) error {
	ts := s.now().UTC()
	sigs := make([]SignalRow, 0, len(res.Signals))
	pos := make(map[[3]string]int, len(res.Signals))
	for _, g := range res.Signals {
		row := SignalRow{
			ObservedAt: ts, Source: source, Cycle: g.Timestamp, MarketID: g.MarketID, Market: g.Market,
			Action: g.Action, Confidence: g.Confidence, Exposure: g.Exposure, EffectiveEdge: g.EffectiveEdge,
			Entropy: g.Entropy, Conviction: g.Conviction, MarketOdds: g.MarketOdds, ZigmaOdds: g.ZigmaOdds,
			Liquidity: g.Liquidity,
		}
		// one statement may not touch a conflicting row twice; the last wins
		k := [3]string{g.Timestamp, g.MarketID, g.Action}
		if i, ok := pos[k]; ok {
			sigs[i] = row
			continue
		}
		pos[k] = len(sigs)
		sigs = append(sigs, row)
	}
	snaps := make([]SnapshotRow, 0, len(res.Markets))
	for _, m := range res.Markets {
		snaps = append(snaps, SnapshotRow{
			ObservedAt: ts, Source: source, Cycle: res.LastCycleTimestamp, MarketID: m.MarketID, Market: m.Market,
			YesPrice: m.YesPrice, WinProb: m.WinProb, Action: m.Action, Liquidity: m.Liquidity, Edge: m.Edge,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(sigs) > 0 {
			if err := tx.Clauses(signalUpsert).CreateInBatches(sigs, 200).Error; err != nil {
				return fmt.Errorf("save signals: %w", err)
			}
		}
		if len(snaps) > 0 {
			if err := tx.CreateInBatches(snaps, 200).Error; err != nil {
				return fmt.Errorf("save snapshots: %w", err)
			}
		}
		return nil
	})
}

func (s *GormHistoryStore) RecentSignals(ctx context.Context, marketID string, limit int) ([]models.SignalRecord, error) {
	q := s.db.WithContext(ctx).Order("observed_at DESC, id DESC").Limit(limit)
	if marketID != "" {
		q = q.Where("market_id = ?", marketID)
	}
	var rows []SignalRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	out := make([]models.SignalRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.SignalRecord{
			Signal: models.Signal{
				Market: r.Market, MarketID: r.MarketID, Action: r.Action, Confidence: r.Confidence,
				Exposure: r.Exposure, Timestamp: r.Cycle, EffectiveEdge: r.EffectiveEdge, Entropy: r.Entropy,
				Conviction: r.Conviction, MarketOdds: r.MarketOdds, ZigmaOdds: r.ZigmaOdds, Liquidity: r.Liquidity,
			},
			Source:     r.Source,
			ObservedAt: r.ObservedAt,
		})
	}
	return out, nil
}

func (s *GormHistoryStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormHistoryStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
