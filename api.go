package cachekit

import (
	"context"
)

// Adapter is the contract shared by every backend.
type Adapter interface {
	// Get returns the stored value, or def when the key is absent, expired or
	// unreadable.
	Get(ctx context.Context, key string, def any) (any, error)
	// Has agrees with Get: expired entries report false.
	Has(ctx context.Context, key string) (bool, error)
	// Set writes value. A Seconds TTL below 1 deletes the key instead and
	// returns Delete's result.
	Set(ctx context.Context, key string, value any, ttl TTL) (bool, error)
	// SetForever writes value without expiry where the backend supports it.
	SetForever(ctx context.Context, key string, value any) (bool, error)
	// Delete reports whether a key was removed.
	Delete(ctx context.Context, key string) (bool, error)
	// Increment and Decrement return ok=false when the backend cannot apply
	// the change (absent key on some backends, non-counter values).
	Increment(ctx context.Context, key string, by int64) (int64, bool, error)
	Decrement(ctx context.Context, key string, by int64) (int64, bool, error)
	// Clear removes this adapter's entries. Backends without a scoped flush
	// (memcached, redis, redis cluster) flush everything.
	Clear(ctx context.Context) (bool, error)
	// Keys lists backend keys under Prefix()+prefix. Returned keys carry the
	// adapter prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	Prefix() string
	Lifetime() int64
	DefaultSerializer() string
	SetDefaultSerializer(name string)
}

// GetAs fetches key and asserts the result to T. def is returned on a miss or
// when the stored value has a different dynamic type (e.g. float64 from a
// JSON-encoded number).
func GetAs[T any](ctx context.Context, a Adapter, key string, def T) (T, error) {
	v, err := a.Get(ctx, key, nil)
	if err != nil || v == nil {
		return def, err
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	return def, nil
}
