package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per key (usually the client address).
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*visitor
	rps   rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time
}

// New returns a limiter allowing rps per key with the given burst.
// rps <= 0 disables limiting.
func New(rps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	lim := rate.Limit(rps)
	if rps <= 0 {
		lim = rate.Inf
	}
	return &Limiter{m: make(map[string]*visitor), rps: lim, burst: burst, idle: 10 * time.Minute, now: time.Now}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	v, ok := l.m[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.rps, l.burst)}
		l.m[key] = v
	}
	v.seen = now
	l.mu.Unlock()
	return v.lim.AllowN(now, 1)
}

// Sweep drops keys idle longer than the idle window and returns how many went.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, v := range l.m {
		if v.seen.Before(cutoff) {
			delete(l.m, k)
			n++
		}
	}
	return n
}
