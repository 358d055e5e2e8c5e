// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// clock is a settable time source for expiry tests.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemoryCache(opts MemoryCacheOptions) (*MemoryCache, *clock) {
	clk := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(opts)
	c.now = clk.Now
	return c, clk
}

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour, MaxSize: 100})
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	if err := cache.Set(ctx, "key1", []byte("value1"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := cache.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "value1" {
		t.Errorf("expected value1, got %s", string(val))
	}

	has, err := cache.Has(ctx, "key1")
	if err != nil || !has {
		t.Errorf("Has = %v, %v; want true", has, err)
	}

	if err := cache.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := cache.Get(ctx, "key1"); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	cache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	value := []byte("abc")
	_ = cache.Set(ctx, "k", value, 0)
	value[0] = 'x'

	got, _ := cache.Get(ctx, "k")
	got[1] = 'y'

	again, _ := cache.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value was mutated: %q", again)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache, clk := newTestMemoryCache(MemoryCacheOptions{DefaultTTL: time.Minute})
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	_ = cache.Set(ctx, "short", []byte("v"), 0)
	_ = cache.Set(ctx, "long", []byte("v"), time.Hour)

	clk.Advance(2 * time.Minute)

	if _, err := cache.Get(ctx, "short"); err != ErrCacheMiss {
		t.Errorf("expected expired key to miss, got %v", err)
	}
	if has, _ := cache.Has(ctx, "long"); !has {
		t.Error("expected long-lived key to remain")
	}
}

func TestMemoryCache_MaxSizeEvictsSoonestExpiry(t *testing.T) {
	cache, _ := newTestMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour, MaxSize: 2})
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	_ = cache.Set(ctx, "a", []byte("1"), time.Minute)
	_ = cache.Set(ctx, "b", []byte("2"), time.Hour)
	_ = cache.Set(ctx, "c", []byte("3"), time.Hour)

	if has, _ := cache.Has(ctx, "a"); has {
		t.Error("expected a to be evicted")
	}
	for _, k := range []string{"b", "c"} {
		if has, _ := cache.Has(ctx, k); !has {
			t.Errorf("expected %s to remain", k)
		}
	}

	// Overwriting an existing key never evicts.
	_ = cache.Set(ctx, "b", []byte("22"), time.Hour)
	if stats := cache.Stats(); stats.Items != 2 {
		t.Errorf("Items = %d, want 2", stats.Items)
	}
}

func TestMemoryCache_DeleteByPrefixAndClear(t *testing.T) {
	cache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	for _, k := range []string{"me:1", "me:2", "other"} {
		_ = cache.Set(ctx, k, []byte(k), 0)
	}

	_ = cache.DeleteByPrefix(ctx, "me:")
	if has, _ := cache.Has(ctx, "me:1"); has {
		t.Error("me:1 should be deleted")
	}
	if has, _ := cache.Has(ctx, "other"); !has {
		t.Error("other should remain")
	}

	_ = cache.Clear(ctx)
	if has, _ := cache.Has(ctx, "other"); has {
		t.Error("Clear should remove everything")
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	_ = cache.Set(ctx, "k", []byte("v"), 0)
	_, _ = cache.Get(ctx, "k")
	_, _ = cache.Get(ctx, "missing")

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.HitRate != 50 {
		t.Errorf("HitRate = %v, want 50", stats.HitRate)
	}

	cache.ResetStats()
	if stats := cache.Stats(); stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("stats after reset = %+v", stats)
	}
}

func TestMemoryCache_Closed(t *testing.T) {
	cache := NewSimpleMemoryCache(time.Hour)
	_ = cache.Close()
	_ = cache.Close()

	if _, err := cache.Get(context.Background(), "k"); err != ErrCacheClosed {
		t.Errorf("Get after Close = %v, want ErrCacheClosed", err)
	}
	if err := cache.Set(context.Background(), "k", nil, 0); err != ErrCacheClosed {
		t.Errorf("Set after Close = %v, want ErrCacheClosed", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour, MaxSize: 50})
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d-%d", n, j%10)
				_ = cache.Set(ctx, key, []byte("v"), 0)
				_, _ = cache.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if items := cache.Stats().Items; items > 50 {
		t.Errorf("Items = %d, exceeds MaxSize", items)
	}
}
