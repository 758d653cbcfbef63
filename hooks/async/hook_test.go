package asynchook

import (
	"errors"
	"sync"
	"testing"

	"github.com/unkn0wn-root/cachekit"
)

type recHooks struct {
	cachekit.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (r *recHooks) add(e string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recHooks) PayloadCorrupt(a, k string, _ error) { r.add("corrupt:" + a + ":" + k) }
func (r *recHooks) FullFlush(a string)                  { r.add("flush:" + a) }

func TestAsyncDeliversBeforeClose(t *testing.T) {
	rec := &recHooks{}
	h := New(rec, 2, 16)
	h.PayloadCorrupt("redis", "k", errors.New("x"))
	h.FullFlush("memcached")
	h.Close()

	if len(rec.events) != 2 {
		t.Fatalf("events=%v", rec.events)
	}
	h.FullFlush("late")
	if h.Dropped() != 1 {
		t.Fatalf("events after Close must be dropped, dropped=%d", h.Dropped())
	}
}

func TestAsyncDropsWhenFull(t *testing.T) {
	rec := &recHooks{block: make(chan struct{})}
	h := New(rec, 1, 1)
	for range 10 {
		h.FullFlush("redis")
	}
	close(rec.block)
	h.Close()
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked worker and a queue of 1")
	}
	if got := uint64(len(rec.events)) + h.Dropped(); got != 10 {
		t.Fatalf("delivered+dropped=%d", got)
	}
}
