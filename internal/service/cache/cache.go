package cache

import (
	"context"
	"time"
)

// BytesCache stores encoded API responses with a TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key joins parts with ':' under the zigma:api namespace.
func Key(parts ...string) string {
	k := "zigma:api"
	for _, p := range parts {
		k += ":" + p
	}
	return k
}
