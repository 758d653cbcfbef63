// Package memory is an in-process cache adapter. Entries never expire; they
// are removed only by Delete or Clear.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/internal/cast"
)

const (
	Name          = "memory"
	DefaultPrefix = "ph-memo-"
)

type Adapter struct {
	*cachekit.Base

	mu   sync.RWMutex
	data map[string]any // prefixed key -> serialized payload
}

func New(opts cachekit.Options) *Adapter {
	return &Adapter{
		Base: cachekit.NewBase(cachekit.BaseConfig{
			Name:              Name,
			Prefix:            DefaultPrefix,
			DefaultSerializer: cachekit.DefaultSerializerName,
		}, opts),
		data: make(map[string]any),
	}
}

func (a *Adapter) Get(_ context.Context, key string, def any) (any, error) {
	a.mu.RLock()
	payload, ok := a.data[a.Key(key)]
	a.mu.RUnlock()
	if !ok {
		return def, nil
	}
	return a.Unserialize(key, payload, def), nil
}

func (a *Adapter) Has(_ context.Context, key string) (bool, error) {
	a.mu.RLock()
	_, ok := a.data[a.Key(key)]
	a.mu.RUnlock()
	return ok, nil
}

// Set stores value. The TTL is only checked for the delete rule; memory
// entries do not expire.
func (a *Adapter) Set(ctx context.Context, key string, value any, ttl cachekit.TTL) (bool, error) {
	if ttl.Deletes() {
		return a.Delete(ctx, key)
	}
	payload, err := a.Serialize(value)
	if err != nil {
		return false, err
	}
	a.mu.Lock()
	a.data[a.Key(key)] = payload
	a.mu.Unlock()
	return true, nil
}

func (a *Adapter) SetForever(ctx context.Context, key string, value any) (bool, error) {
	return a.Set(ctx, key, value, cachekit.DefaultTTL)
}

func (a *Adapter) Delete(_ context.Context, key string) (bool, error) {
	k := a.Key(key)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.data[k]; !ok {
		return false, nil
	}
	delete(a.data, k)
	return true, nil
}

// Increment reads the stored value as an integer (non-numeric reads as 0),
// adds by and stores the result. An absent key is not created.
func (a *Adapter) Increment(_ context.Context, key string, by int64) (int64, bool, error) {
	k := a.Key(key)
	a.mu.Lock()
	defer a.mu.Unlock()
	payload, ok := a.data[k]
	if !ok {
		return 0, false, nil
	}
	n, _ := cast.Int64(a.Unserialize(key, payload, nil))
	n += by
	out, err := a.Serialize(n)
	if err != nil {
		return 0, false, err
	}
	a.data[k] = out
	return n, true, nil
}

func (a *Adapter) Decrement(ctx context.Context, key string, by int64) (int64, bool, error) {
	return a.Increment(ctx, key, -by)
}

// Clear empties this adapter's map. Other instances are unaffected.
func (a *Adapter) Clear(context.Context) (bool, error) {
	a.mu.Lock()
	a.data = make(map[string]any)
	a.mu.Unlock()
	return true, nil
}

func (a *Adapter) Keys(_ context.Context, prefix string) ([]string, error) {
	a.mu.RLock()
	all := slices.Sorted(maps.Keys(a.data))
	a.mu.RUnlock()
	return a.FilterKeys(all, prefix), nil
}

// Snapshot copies the stored payloads keyed by backend key.
func (a *Adapter) Snapshot() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.data)
}

var _ cachekit.Adapter = (*Adapter)(nil)
