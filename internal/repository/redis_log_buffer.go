package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ZigmaPulse/internal/domain/models"
	domrepo "ZigmaPulse/internal/domain/repository"
)

const defaultBufferCap = 5000

// RedisLogBuffer keeps the newest lines of each agent in a capped list.
// Lines are LPUSHed so index 0 is the newest.
type RedisLogBuffer struct {
	cli    redis.UniversalClient
	prefix string
	cap    int
}

func NewRedisLogBuffer(cli redis.UniversalClient, capLines int) *RedisLogBuffer {
	if capLines <= 0 {
		capLines = defaultBufferCap
	}
	return &RedisLogBuffer{cli: cli, prefix: "zigma:logs", cap: capLines}
}

var _ domrepo.LogBuffer = (*RedisLogBuffer)(nil)

func (b *RedisLogBuffer) key(agent string) string { return b.prefix + ":" + agent }

// Append pushes lines per agent in arrival order and trims each list.
func (b *RedisLogBuffer) Append(ctx context.Context, lines []*models.LogLine) error {
	if len(lines) == 0 {
		return nil
	}
	byAgent := make(map[string][]interface{})
	order := make([]string, 0, 1)
	for _, l := range lines {
		if l == nil {
			continue
		}
		if _, ok := byAgent[l.Agent]; !ok {
			order = append(order, l.Agent)
		}
		byAgent[l.Agent] = append(byAgent[l.Agent], l.Text)
	}
	_, err := b.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, agent := range order {
			k := b.key(agent)
			p.LPush(ctx, k, byAgent[agent]...)
			p.LTrim(ctx, k, 0, int64(b.cap-1))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append logs: %w", err)
	}
	return nil
}

// Tail returns up to n lines of agent, oldest first. n <= 0 reads the whole buffer.
func (b *RedisLogBuffer) Tail(ctx context.Context, agent string, n int) ([]string, error) {
	stop := int64(n - 1)
	if n <= 0 {
		stop = -1
	}
	vals, err := b.cli.LRange(ctx, b.key(agent), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis tail %s: %w", agent, err)
	}
	reverse(vals)
	return vals, nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
