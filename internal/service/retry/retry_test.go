package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("429 too many requests")

func fastPolicy(n int) Policy {
	return Policy{MaxAttempts: n, Delay: time.Millisecond, Multiplier: 2, MaxDelay: 4 * time.Millisecond}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third call, err=%v calls=%d", err, calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(context.Context, int) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) || calls != 3 {
		t.Fatalf("expected last error after 3 calls, err=%v calls=%d", err, calls)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	notFound := errors.New("404")
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(context.Context, int) error {
		calls++
		return Permanent(notFound)
	})
	if err != notFound || calls != 1 {
		t.Fatalf("permanent error must stop retries, err=%v calls=%d", err, calls)
	}
	if !IsPermanent(Permanent(notFound)) || IsPermanent(notFound) {
		t.Fatalf("IsPermanent misclassifies")
	}
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Policy{MaxAttempts: 3, Delay: time.Second}, func(context.Context, int) error { return errTransient })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
