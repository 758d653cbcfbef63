// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    CorruptEvery: 10, // sample logs: ~every 10th corrupt payload
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	a, _ := redis.New(redis.Options{
//	    Options: cachekit.Options{Hooks: hooks}, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/cachekit"
)

// Hooks forwards events to inner on background workers. Events are dropped
// when the queue is full; Dropped counts them.
type Hooks struct {
	inner   cachekit.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ cachekit.Hooks = (*Hooks)(nil)

func New(inner cachekit.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for range workers {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// send on a queue closed between the check and the send
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) FullFlush(a string)          { h.try(func() { h.inner.FullFlush(a) }) }
func (h *Hooks) ReferenceCollected(k string) { h.try(func() { h.inner.ReferenceCollected(k) }) }
func (h *Hooks) PayloadCorrupt(a, k string, err error) {
	h.try(func() { h.inner.PayloadCorrupt(a, k, err) })
}
func (h *Hooks) ConnectFailed(a, target string, err error) {
	h.try(func() { h.inner.ConnectFailed(a, target, err) })
}
