package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every backend failure.
var ErrUnavailable = errors.New("cache unavailable")

// Cache is a TTL key-value store.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns ok=false when the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	// TTL returns the remaining lifetime, or zero for a missing key.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Incr increments a counter and starts its ttl window on the first hit.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// CompareAndSwap replaces the value at key with next only if it
	// currently equals expected. A missing key never swaps.
	CompareAndSwap(ctx context.Context, key, expected, next string, ttl time.Duration) (bool, error)
}
