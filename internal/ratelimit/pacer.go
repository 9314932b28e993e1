package ratelimit

import (
	"context"
	"time"
)

// Pacer sleeps a fixed delay between sequential steps.
type Pacer struct {
	delay time.Duration
}

// NewPacer creates a pacer. A zero delay makes Wait return immediately.
func NewPacer(delay time.Duration) *Pacer {
	if delay < 0 {
		delay = 0
	}
	return &Pacer{delay: delay}
}

// Delay returns the configured delay.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Wait blocks for the delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
