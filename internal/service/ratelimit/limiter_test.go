package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAllowRefills(t *testing.T) {
	l := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("fmp", 3, 1) {
			t.Fatalf("token %d should be available", i)
		}
	}
	if l.Allow("fmp", 3, 1) {
		t.Fatalf("bucket should be empty")
	}
	if !l.Allow("other", 3, 1) {
		t.Fatalf("buckets are per key")
	}

	now = now.Add(1500 * time.Millisecond)
	if !l.Allow("fmp", 3, 1) {
		t.Fatalf("one token should have refilled")
	}
	if l.Allow("fmp", 3, 1) {
		t.Fatalf("only one token should have refilled")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New()
	ctx := context.Background()
	if err := l.Wait(ctx, "fmp", 1, 50); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "fmp", 1, 50); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("second token should have required waiting")
	}

	short, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	if err := l.Wait(short, "slow", 1, 0.01); err != nil {
		t.Fatalf("initial token: %v", err)
	}
	if err := l.Wait(short, "slow", 1, 0.01); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}
