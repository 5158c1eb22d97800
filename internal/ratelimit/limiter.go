// Package ratelimit applies a token bucket per caller identity.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config sizes a Limiter.
type Config struct {
	RPS   float64
	Burst int
	// IdleTTL is how long an unused bucket is kept. Default 10m.
	IdleTTL time.Duration
	// SweepEvery is the number of calls between idle sweeps. Default 512.
	SweepEvery uint64
}

// Limiter keeps one token bucket per identity. A denied call reports how
// long the caller should wait, which transports surface as Retry-After.
// A nil *Limiter allows everything.
type Limiter struct {
	cfg   Config
	limit rate.Limit

	mu      sync.Mutex
	buckets map[string]*bucket
	calls   uint64
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// New returns nil (unlimited) when RPS or Burst is not positive.
func New(cfg Config) *Limiter {
	if cfg.RPS <= 0 || cfg.Burst <= 0 {
		return nil
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.SweepEvery == 0 {
		cfg.SweepEvery = 512
	}
	return &Limiter{
		cfg:     cfg,
		limit:   rate.Limit(cfg.RPS),
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one token for identity at now. When the bucket is empty it
// returns false and the delay until a token becomes available; the token is
// not held for the caller. Blank identities are not limited.
func (l *Limiter) Allow(identity string, now time.Time) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(l.limit, l.cfg.Burst)}
		l.buckets[identity] = b
	}
	b.lastSeen = now

	r := b.tokens.ReserveN(now, 1)
	allowed, wait := true, time.Duration(0)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		allowed, wait = false, d
	}

	l.calls++
	if l.calls%l.cfg.SweepEvery == 0 {
		l.sweep(now)
	}
	return allowed, wait
}

func (l *Limiter) sweep(now time.Time) {
	cutoff := now.Add(-l.cfg.IdleTTL)
	for id, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
