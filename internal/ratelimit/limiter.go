package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages a rate limit per upstream host, so repeated cache misses
// (or a stale cache retrying against a failing source) cannot hammer the site.
type Limiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a Limiter allowing perMinute requests per host.
// A non-positive perMinute disables limiting.
func New(perMinute int) *Limiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	return &Limiter{
		limit:    limit,
		burst:    1,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Unlimited returns a Limiter that never blocks.
func Unlimited() *Limiter {
	return New(0)
}

// forHost returns the limiter for host, creating it on first use
func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists = l.limiters[host]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(l.limit, l.burst)
	l.limiters[host] = limiter
	return limiter
}

// Wait blocks until the limiter permits a request to host.
// It returns an error if the context is canceled before the request can proceed.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if l == nil || l.limit == rate.Inf {
		return nil
	}
	return l.forHost(host).Wait(ctx)
}

// Allow reports whether a request to host may happen now
func (l *Limiter) Allow(host string) bool {
	if l == nil || l.limit == rate.Inf {
		return true
	}
	return l.forHost(host).Allow()
}
