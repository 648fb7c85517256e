package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "filtered_stock_AAPL", payload{Name: "AAPL", Value: 1.5}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	if err := c.Get(ctx, "filtered_stock_AAPL", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "AAPL" || got.Value != 1.5 {
		t.Fatalf("unexpected value %+v", got)
	}

	var raw string
	if err := c.Get(ctx, "filtered_stock_AAPL", &raw); err != nil || raw != `{"name":"AAPL","value":1.5}` {
		t.Fatalf("raw read: %q %v", raw, err)
	}

	if err := c.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "short", "v", 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	var s string
	if err := c.Get(ctx, "short", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired key to miss, got %v", err)
	}
	if ok, _ := c.Exists(ctx, "short"); ok {
		t.Fatalf("expired key reported as existing")
	}
}

func TestMemoryCacheKeys(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"filtered_stock_MSFT", "filtered_stock_AAPL", "filter_job_abc", "symbols_NYSE"} {
		_ = c.Set(ctx, k, "x", time.Hour)
	}
	keys, err := c.Keys(ctx, BuildPattern("filtered_stock_"))
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "filtered_stock_AAPL" || keys[1] != "filtered_stock_MSFT" {
		t.Fatalf("unexpected keys %v", keys)
	}

	got, err := MGetTyped[string](ctx, c, "symbols_NYSE", "nope")
	if err != nil {
		t.Fatalf("mget: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("non-JSON value should be skipped, got %v", got)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2))
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "a", "1", time.Hour)
	time.Sleep(time.Millisecond)
	_ = c.Set(ctx, "b", "2", time.Hour)
	time.Sleep(time.Millisecond)
	var s string
	_ = c.Get(ctx, "a", &s)
	_ = c.Set(ctx, "c", "3", time.Hour)

	if ok, _ := c.Exists(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if ok, _ := c.Exists(ctx, "a", "c"); !ok {
		t.Fatalf("a and c should remain")
	}
}

func TestWithLockSerializesWriters(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	var inside, overlaps atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(ctx, c, "filtered_stock_AAPL", time.Second, 2*time.Second, time.Millisecond, func() error {
				if inside.Add(1) > 1 {
					overlaps.Add(1)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("with lock: %v", err)
			}
		}()
	}
	wg.Wait()
	if overlaps.Load() != 0 {
		t.Fatalf("critical sections overlapped %d times", overlaps.Load())
	}
}

func TestWithLockTimeout(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if ok, _ := c.TryLock(ctx, LockKey("k"), time.Minute); !ok {
		t.Fatalf("first lock must succeed")
	}
	err := WithLock(ctx, c, "k", time.Second, 10*time.Millisecond, 2*time.Millisecond, func() error { return nil })
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}
