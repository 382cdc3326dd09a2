package repository

import (
	"context"
	"strings"

	domrepo "ZigmaPulse/internal/domain/repository"
)

type tailer interface {
	Tail(ctx context.Context, agent string, n int) ([]string, error)
}

// TailSource exposes the tail of a buffer or store as a LogSource.
type TailSource struct {
	name  string
	agent string
	lines int
	t     tailer
}

// NewTailSource reads the last lines of agent from t. An empty agent defaults to name.
func NewTailSource(name, agent string, lines int, t tailer) *TailSource {
	if agent == "" {
		agent = name
	}
	return &TailSource{name: name, agent: agent, lines: lines, t: t}
}

var _ domrepo.LogSource = (*TailSource)(nil)

func (s *TailSource) Name() string { return s.name }

func (s *TailSource) FetchLogs(ctx context.Context) (string, error) {
	lines, err := s.t.Tail(ctx, s.agent, s.lines)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}
