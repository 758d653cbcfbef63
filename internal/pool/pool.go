// Package pool shares long-lived backend clients between adapter instances
// that ask for the same persistent id.
package pool

import "sync"

// Registry holds one value per id. The zero value is ready to use.
type Registry[T any] struct {
	mu    sync.Mutex
	items map[string]T
}

// Get returns the value registered under id, creating it with create on
// first use. A failed create registers nothing.
func (r *Registry[T]) Get(id string, create func() (T, error)) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.items[id]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		return v, err
	}
	if r.items == nil {
		r.items = make(map[string]T)
	}
	r.items[id] = v
	return v, nil
}

// Forget drops id and returns the value that was registered, if any.
func (r *Registry[T]) Forget(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[id]
	delete(r.items, id)
	return v, ok
}
