package cache

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "channels_all", payload{Name: "a", Count: 2}, time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	var got payload
	found, err := c.Get(ctx, "channels_all", &got)
	if err != nil || !found {
		t.Fatalf("Get = (%v, %v), want hit", found, err)
	}
	if got.Name != "a" || got.Count != 2 {
		t.Fatalf("got %+v", got)
	}

	var miss payload
	if found, _ := c.Get(ctx, "missing", &miss); found {
		t.Fatal("expected miss for unknown key")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Keys != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "k", 1, time.Minute)
	_ = c.Set(ctx, "forever", 2, 0)
	now = now.Add(2 * time.Minute)

	var v int
	if found, _ := c.Get(ctx, "k", &v); found {
		t.Fatal("expired entry returned")
	}
	if found, _ := c.Get(ctx, "forever", &v); !found || v != 2 {
		t.Fatal("entry without ttl should not expire")
	}
}

func TestMemoryCachePurge(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, time.Second)
	_ = c.Set(ctx, "b", 1, time.Hour)
	now = now.Add(time.Minute)

	if removed := c.Purge(); removed != 1 {
		t.Fatalf("purged %d entries, want 1", removed)
	}
	if c.Stats().Keys != 1 {
		t.Fatalf("keys = %d, want 1", c.Stats().Keys)
	}
}

func TestMemoryCacheInvalidatePrefix(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_ = c.Set(ctx, "videos_since_7", 1, time.Hour)
	_ = c.Set(ctx, "videos_ids_a", 1, time.Hour)
	_ = c.Set(ctx, "channels_all", 1, time.Hour)

	if err := c.InvalidatePrefix(ctx, "videos_"); err != nil {
		t.Fatalf("InvalidatePrefix returned error: %v", err)
	}

	var v int
	if found, _ := c.Get(ctx, "videos_since_7", &v); found {
		t.Fatal("prefixed key survived invalidation")
	}
	if found, _ := c.Get(ctx, "channels_all", &v); !found {
		t.Fatal("unrelated key was invalidated")
	}
}

func TestMemoryCacheDoesNotAlias(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	ids := []string{"a", "b"}
	_ = c.Set(ctx, "k", ids, time.Hour)
	ids[0] = "mutated"

	var got []string
	_, _ = c.Get(ctx, "k", &got)
	if got[0] != "a" {
		t.Fatalf("cached value changed through caller slice: %v", got)
	}
}
