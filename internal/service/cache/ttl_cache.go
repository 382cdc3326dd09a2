package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type entry struct {
	v   []byte
	exp time.Time
}

// TTLCache is the in-process BytesCache used when Redis is off.
type TTLCache struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]entry), now: time.Now}
}

func (c *TTLCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

// SetBytes stores value; ttl <= 0 never expires.
func (c *TTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{v: value, exp: exp}
	c.mu.Unlock()
	return nil
}

// Len counts entries, expired ones included until they are read.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// PutOutcome reports what Put did to a key.
type PutOutcome int

const (
	Unchanged PutOutcome = iota
	Added
	Replaced
)

// Put stores value under key and compares it with what was there. Expired
// entries count as absent. The ttl is refreshed on every call.
func (c *TTLCache) Put(key string, value []byte, ttl time.Duration) PutOutcome {
	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.m[key]
	c.m[key] = entry{v: value, exp: exp}
	switch {
	case !ok || (!prev.exp.IsZero() && now.After(prev.exp)):
		return Added
	case bytes.Equal(prev.v, value):
		return Unchanged
	default:
		return Replaced
	}
}

// Sweep drops expired entries and returns how many it removed.
func (c *TTLCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
			n++
		}
	}
	return n
}
