package usecase

import (
	"context"
	"fmt"

	"ZigmaPulse/internal/domain/models"
	drepo "ZigmaPulse/internal/domain/repository"
	"ZigmaPulse/pkg/queue"
)

// PersistJobType is the queue message type written by the poller.
const PersistJobType = "persist_parse"

// PersistPayload carries the new part of one parse.
type PersistPayload struct {
	Source string             `json:"source"`
	Result models.ParseResult `json:"result"`
}

// PersistJob writes queued parse results to the history store.
type PersistJob struct {
	store drepo.HistoryStore
}

func NewPersistJob(store drepo.HistoryStore) *PersistJob { return &PersistJob{store: store} }

func (j *PersistJob) Name() string { return "persist-parse" }

func (j *PersistJob) Type() string { return PersistJobType }

func (j *PersistJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[PersistPayload](payload)
	if err != nil {
		return err
	}
	if p.Source == "" {
		return fmt.Errorf("persist payload without source")
	}
	return j.store.SaveParse(ctx, p.Source, p.Result)
}

var _ queue.Job = (*PersistJob)(nil)
