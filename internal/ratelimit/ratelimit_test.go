package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacer_WaitsForDelay(t *testing.T) {
	p := NewPacer(20 * time.Millisecond)

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected at least 20ms, waited %s", elapsed)
	}
}

func TestPacer_Cancelled(t *testing.T) {
	p := NewPacer(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPacer_ZeroDelay(t *testing.T) {
	p := NewPacer(-time.Second)
	if p.Delay() != 0 {
		t.Errorf("expected negative delay to clamp to 0, got %s", p.Delay())
	}
	if err := p.Wait(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLimiter_Burst(t *testing.T) {
	l := New(60) // 1 rps, burst 6

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow() {
			allowed++
		}
	}
	if allowed != 6 {
		t.Errorf("expected burst of 6, got %d", allowed)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := New(0)
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatal("expected unlimited limiter to always allow")
		}
	}
}
