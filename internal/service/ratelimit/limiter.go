// Package ratelimit provides per-key request limiting for the API endpoints.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keys token buckets by caller, typically client IP plus endpoint.
// Buckets are created on first use with the burst and rate the endpoint asks
// for; later calls with different parameters reuse the existing bucket.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*rate.Limiter)}
}

// Allow reports whether one request may proceed for key.
func (l *Limiter) Allow(key string, burst, perSec float64) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(perSec), int(burst))
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}
