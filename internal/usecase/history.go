package usecase

import (
	"context"

	"ZigmaPulse/internal/domain/models"
	drepo "ZigmaPulse/internal/domain/repository"
)

// HistoryUseCase reads persisted signals.
type HistoryUseCase struct {
	store drepo.HistoryStore
}

// NewHistoryUseCase accepts a nil store; reads then fail with ErrHistoryDisabled.
func NewHistoryUseCase(store drepo.HistoryStore) *HistoryUseCase {
	return &HistoryUseCase{store: store}
}

func (uc *HistoryUseCase) Signals(ctx context.Context, marketID string, limit int) ([]models.SignalRecord, error) {
	if uc.store == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = 50
	}
	return uc.store.RecentSignals(ctx, marketID, limit)
}
