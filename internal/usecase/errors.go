package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLogs means the source answered with an empty log.
	ErrNoLogs = errors.New("no logs")
	// ErrNoSignal means the log holds no signal line yet.
	ErrNoSignal = errors.New("no signal")
	// ErrSourceNotFound means the requested source is not configured.
	ErrSourceNotFound = errors.New("source not found")
	// ErrHistoryDisabled means no history store is configured.
	ErrHistoryDisabled = errors.New("history store disabled")
)

// FetchError wraps a failure to read a source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Source, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }
