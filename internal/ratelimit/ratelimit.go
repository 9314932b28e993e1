// Package ratelimit throttles outbound calls. Limiter enforces an upstream
// per-minute quota; Pacer spaces out steps of a sequential pipeline.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket sized from a per-minute quota.
type Limiter struct {
	bucket *rate.Limiter
}

// New allows perMinute calls per minute with a burst of a tenth of that,
// at least one. perMinute <= 0 means unlimited.
func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		return &Limiter{bucket: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := max(perMinute/10, 1)
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)}
}

// Wait blocks for a token or until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}

// Allow takes a token if one is available now.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}
