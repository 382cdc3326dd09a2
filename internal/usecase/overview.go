package usecase

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ZigmaPulse/internal/domain/models"
	drepo "ZigmaPulse/internal/domain/repository"
	"ZigmaPulse/internal/services/logparse"
)

// OverviewUseCase summarises every source concurrently.
type OverviewUseCase struct {
	feed    *SignalFeed
	timeout time.Duration
	limit   int
}

func NewOverviewUseCase(feed *SignalFeed, timeout time.Duration) *OverviewUseCase {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &OverviewUseCase{feed: feed, timeout: timeout, limit: 4}
}

// Get never fails as a whole: a failing source lands in Errors.
func (uc *OverviewUseCase) Get(ctx context.Context) (*models.Overview, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	names := uc.feed.Sources()
	res := &models.Overview{
		Timestamp: time.Now().UTC(),
		Sources:   make([]models.SourceSummary, len(names)),
		Errors:    map[string]string{},
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(uc.limit)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			sum, err := uc.summarise(ctx, name)
			if err != nil {
				mu.Lock()
				res.Errors[name] = err.Error()
				mu.Unlock()
				sum = models.SourceSummary{Source: name}
			}
			res.Sources[i] = sum
			return nil
		})
	}
	_ = g.Wait()

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

func (uc *OverviewUseCase) summarise(ctx context.Context, name string) (models.SourceSummary, error) {
	snap, err := uc.feed.Fetch(ctx, name, drepo.VariantFeed)
	if err != nil {
		return models.SourceSummary{}, err
	}
	win := logparse.Window(snap.Result, drepo.PolicyFor(drepo.VariantFeed).Window, drepo.PolicyFor(drepo.VariantLogs).Window)
	sum := models.SourceSummary{
		Source:    name,
		LastCycle: snap.Result.LastCycleTimestamp,
		Stats:     logparse.Stats(win),
	}
	if last := logparse.LastSignals(snap.Result.Signals, 1); len(last) == 1 {
		sum.Latest = &last[0]
	}
	return sum, nil
}
