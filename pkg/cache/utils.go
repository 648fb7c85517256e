package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// BuildPattern creates a pattern matching every key with the prefix.
func BuildPattern(prefix string) string {
	return fmt.Sprintf("%s*", prefix)
}

// ErrLockTimeout is returned when a lock could not be taken before the deadline.
var ErrLockTimeout = errors.New("cache: lock not acquired")

// LockKey is the key guarding writes to key.
func LockKey(key string) string {
	return "lock:" + key
}

// WithLock runs fn while holding the lock of key, retrying TryLock every
// retry until wait elapses.
func WithLock(ctx context.Context, c Service, key string, ttl, wait, retry time.Duration, fn func() error) error {
	lock := LockKey(key)
	deadline := time.Now().Add(wait)
	for {
		ok, err := c.TryLock(ctx, lock, ttl)
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
	defer func() { _ = c.Unlock(context.WithoutCancel(ctx), lock) }()
	return fn()
}
