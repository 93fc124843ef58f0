package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheHitWithinTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || string(value) != "v" {
		t.Errorf("expected hit with value v, got ok=%v value=%q", ok, value)
	}
}

func TestMemoryCacheMissUnknownKey(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, ok, err := c.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Error("expected miss for unknown key")
	}
}

func TestMemoryCacheLazyExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	base := time.Now()
	c.now = func() time.Time { return base }

	if err := c.Set(ctx, "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// Just inside the TTL
	c.now = func() time.Time { return base.Add(29 * time.Second) }
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("expected hit just inside TTL")
	}

	// At the TTL boundary the entry is stale and evicted lazily
	c.now = func() time.Time { return base.Add(30 * time.Second) }
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected miss at TTL boundary")
	}

	// The stale entry is gone even if the clock goes backwards
	c.now = func() time.Time { return base }
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected stale entry to have been evicted")
	}
}

func TestMemoryCacheLastWriteWins(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_ = c.Set(ctx, "k", []byte("first"), time.Minute)
	_ = c.Set(ctx, "k", []byte("second"), time.Minute)

	value, ok, _ := c.Get(ctx, "k")
	if !ok || string(value) != "second" {
		t.Errorf("expected last write to win, got ok=%v value=%q", ok, value)
	}
}
