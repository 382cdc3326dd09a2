package service

import (
	"context"

	"ZigmaPulse/internal/domain/models"
)

// SignalParser turns cycle log text into signals and snapshots.
type SignalParser interface {
	Parse(text, defaultMarket string) models.ParseResult
}

// Notifier pushes a human readable alert for a new signal.
type Notifier interface {
	NotifySignal(ctx context.Context, source string, s models.Signal) error
}

// Archiver stores raw log text for later replay.
type Archiver interface {
	Archive(ctx context.Context, source string, text string) (key string, err error)
}
