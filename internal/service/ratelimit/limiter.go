package ratelimit

import (
	"sync"
	"time"
)

// bucket is one token bucket. Tokens refill continuously; a bucket at
// capacity stops accumulating.
type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a keyed token-bucket limiter. The same instance throttles both
// API callers (keyed by client IP) and order submission (keyed by symbol);
// buckets are created lazily with the parameters of their first Allow call.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*bucket
}

func New() *Limiter {
	return &Limiter{m: make(map[string]*bucket)}
}

// Allow consumes one token for key if available. A new key starts with a
// full bucket, so the first burst up to capacity always passes.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Forget drops the bucket for key, releasing its memory. Used when a symbol
// worker shuts down.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.m, key)
	l.mu.Unlock()
}
