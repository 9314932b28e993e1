package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](0)
	defer c.Close()

	c.Set(ctx, "a", 1, time.Minute)

	v, ok := c.Get(ctx, "a")
	if !ok || v != 1 {
		t.Fatalf("expected (1, true), got (%d, %v)", v, ok)
	}

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := New[string, string](0)
	defer c.Close()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set(ctx, "short", "x", time.Second)
	c.Set(ctx, "forever", "y", NoExpiration)

	now = now.Add(2 * time.Second)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("expected expired entry to be hidden")
	}
	if v, ok := c.Get(ctx, "forever"); !ok || v != "y" {
		t.Errorf("expected non-expiring entry, got (%q, %v)", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 live entry, got %d", c.Len())
	}

	c.deleteExpired()

	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	if n != 1 {
		t.Errorf("expected janitor sweep to leave 1 entry, got %d", n)
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := New[int, bool](time.Hour)
	defer c.Close()

	c.Set(ctx, 1, true, NoExpiration)
	c.Set(ctx, 2, true, NoExpiration)

	c.Delete(ctx, 1)
	if _, ok := c.Get(ctx, 1); ok {
		t.Error("expected deleted key to be gone")
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != 2 {
		t.Errorf("expected keys [2], got %v", keys)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New[string, int](10 * time.Millisecond)
	c.Close()
	c.Close()
}
