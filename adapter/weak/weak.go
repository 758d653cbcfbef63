// Package weak is a cache adapter holding weak references to objects of one
// type. It never keeps a value alive: once the garbage collector reclaims a
// referent its entry reads as absent and is pruned. Values are never
// serialized and entries have no TTL.
package weak

import (
	"context"
	"maps"
	"runtime"
	"slices"
	"sync"
	"unsafe"
	"weak"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/serializer"
)

const (
	Name          = "weak"
	DefaultPrefix = "ph-weak-"
)

// Adapter stores *T values by weak reference.
type Adapter[T any] struct {
	*cachekit.Base

	mu       sync.Mutex
	refs     map[string]weak.Pointer[T] // prefixed key -> referent
	fetching map[string]int             // prefixed keys being resolved
	sized    bool                       // T occupies memory; zero-size values share an address
}

// New builds an adapter for *T. Serializer options are ignored. A zero-size T
// has no distinct objects to reference, so such an adapter rejects every Set.
func New[T any](opts cachekit.Options) *Adapter[T] {
	opts.DefaultSerializer = string(serializer.KindNone)
	opts.Serializer = nil
	var zero T
	return &Adapter[T]{
		sized: unsafe.Sizeof(zero) > 0,
		Base: cachekit.NewBase(cachekit.BaseConfig{
			Name:              Name,
			Prefix:            DefaultPrefix,
			DefaultSerializer: string(serializer.KindNone),
		}, opts),
		refs:     make(map[string]weak.Pointer[T]),
		fetching: make(map[string]int),
	}
}

// SetDefaultSerializer is a no-op: weak references cannot be serialized.
func (a *Adapter[T]) SetDefaultSerializer(string) {}

// Get resolves the reference. A collected referent prunes the entry and
// returns def.
func (a *Adapter[T]) Get(_ context.Context, key string, def any) (any, error) {
	k := a.Key(key)
	a.mu.Lock()
	wp, ok := a.refs[k]
	if !ok {
		a.mu.Unlock()
		return def, nil
	}
	a.fetching[k]++
	a.mu.Unlock()

	p := wp.Value()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fetching[k]--; a.fetching[k] == 0 {
		delete(a.fetching, k)
	}
	if p == nil {
		if cur, ok := a.refs[k]; ok && cur == wp {
			delete(a.refs, k)
		}
		return def, nil
	}
	return p, nil
}

func (a *Adapter[T]) Has(_ context.Context, key string) (bool, error) {
	k := a.Key(key)
	a.mu.Lock()
	defer a.mu.Unlock()
	wp, ok := a.refs[k]
	if !ok {
		return false, nil
	}
	if wp.Value() == nil {
		delete(a.refs, k)
		return false, nil
	}
	return true, nil
}

// Set stores a weak reference to value, which must be a non-nil *T.
// Anything else is rejected with false. The TTL only matters for the delete
// rule.
func (a *Adapter[T]) Set(ctx context.Context, key string, value any, ttl cachekit.TTL) (bool, error) {
	if ttl.Deletes() {
		return a.Delete(ctx, key)
	}
	p, ok := value.(*T)
	if !ok || p == nil || !a.sized {
		return false, nil
	}
	k := a.Key(key)
	wp := weak.Make(p)
	a.mu.Lock()
	a.refs[k] = wp
	a.mu.Unlock()
	runtime.AddCleanup(p, a.collected, ref[T]{key: key, wp: wp})
	return true, nil
}

func (a *Adapter[T]) SetForever(ctx context.Context, key string, value any) (bool, error) {
	return a.Set(ctx, key, value, cachekit.DefaultTTL)
}

// Delete removes key. A key that is being resolved by Get is not removed.
func (a *Adapter[T]) Delete(_ context.Context, key string) (bool, error) {
	k := a.Key(key)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fetching[k] > 0 {
		return false, nil
	}
	if _, ok := a.refs[k]; !ok {
		return false, nil
	}
	delete(a.refs, k)
	return true, nil
}

type ref[T any] struct {
	key string
	wp  weak.Pointer[T]
}

// collected runs after the referent of r is reclaimed. It goes through the
// same guard as Delete and leaves a key alone once it points elsewhere.
func (a *Adapter[T]) collected(r ref[T]) {
	k := a.Key(r.key)
	a.mu.Lock()
	if a.fetching[k] > 0 {
		a.mu.Unlock()
		return
	}
	cur, ok := a.refs[k]
	if ok && cur == r.wp {
		delete(a.refs, k)
	}
	a.mu.Unlock()
	if ok && cur == r.wp {
		a.Hooks().ReferenceCollected(r.key)
	}
}

func (a *Adapter[T]) Increment(context.Context, string, int64) (int64, bool, error) {
	return 0, false, nil
}

func (a *Adapter[T]) Decrement(context.Context, string, int64) (int64, bool, error) {
	return 0, false, nil
}

func (a *Adapter[T]) Clear(context.Context) (bool, error) {
	a.mu.Lock()
	a.refs = make(map[string]weak.Pointer[T])
	a.mu.Unlock()
	return true, nil
}

// Keys lists live entries; dead ones are pruned on the way.
func (a *Adapter[T]) Keys(_ context.Context, prefix string) ([]string, error) {
	a.mu.Lock()
	for k, wp := range a.refs {
		if wp.Value() == nil {
			delete(a.refs, k)
		}
	}
	all := slices.Sorted(maps.Keys(a.refs))
	a.mu.Unlock()
	return a.FilterKeys(all, prefix), nil
}

// Len is the number of entries, including ones whose referent is gone but
// not yet pruned.
func (a *Adapter[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.refs)
}

var _ cachekit.Adapter = (*Adapter[struct{}])(nil)
