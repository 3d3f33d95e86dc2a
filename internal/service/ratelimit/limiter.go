package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per key, typically per upstream host.
type Limiter struct {
	capacity int
	refill   rate.Limit

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

// New returns a limiter allowing bursts of capacity and refillPerSec
// requests per second afterwards.
func New(capacity int, refillPerSec float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{capacity: capacity, refill: rate.Limit(refillPerSec), m: make(map[string]*rate.Limiter)}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.m[key]
	if !ok {
		lim = rate.NewLimiter(l.refill, l.capacity)
		l.m[key] = lim
	}
	return lim
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Wait blocks until a token for key is available or ctx is done. It fails
// at once when the wait would outlast the ctx deadline.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.get(key).Wait(ctx)
}
