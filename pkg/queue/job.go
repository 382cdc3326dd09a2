package queue

import "context"

// Job defines a queue job handler.
type Job interface {
	// Name identifies the job in logs.
	Name() string
	// Type is the message type the job consumes.
	Type() string
	// Handle processes one payload. Returning an error schedules a retry.
	Handle(ctx context.Context, payload interface{}) error
}
