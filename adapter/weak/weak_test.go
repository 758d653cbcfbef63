package weak

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/cachekit"
)

// obj is large enough to stay out of the tiny allocator, so it is reclaimed
// on its own.
type obj struct {
	ID   int
	Name string
	Tags [4]int64
}

//go:noinline
func setTemp(t *testing.T, a *Adapter[obj], key string) {
	t.Helper()
	if ok, _ := a.Set(context.Background(), key, &obj{ID: 1, Name: "tmp"}, cachekit.DefaultTTL); !ok {
		t.Fatalf("Set rejected a *obj")
	}
}

func TestWeakRoundTripWhileReachable(t *testing.T) {
	ctx := context.Background()
	a := New[obj](cachekit.Options{})
	o := &obj{ID: 7}
	if ok, _ := a.Set(ctx, "k", o, cachekit.DefaultTTL); !ok {
		t.Fatalf("Set failed")
	}
	v, _ := a.Get(ctx, "k", nil)
	if v != any(o) {
		t.Fatalf("Get returned %v", v)
	}
	if has, _ := a.Has(ctx, "k"); !has {
		t.Fatalf("Has=false")
	}
	ks, _ := a.Keys(ctx, "")
	if len(ks) != 1 || ks[0] != DefaultPrefix+"k" {
		t.Fatalf("Keys=%v", ks)
	}
	runtime.KeepAlive(o)
}

var pinned = obj{ID: 99, Name: "global"}

func TestWeakPointerToPackageVariable(t *testing.T) {
	ctx := context.Background()
	a := New[obj](cachekit.Options{})
	if ok, err := a.Set(ctx, "g", &pinned, cachekit.DefaultTTL); !ok || err != nil {
		t.Fatalf("Set(&pinned)=%v %v", ok, err)
	}
	runtime.GC()
	v, _ := a.Get(ctx, "g", nil)
	if v != any(&pinned) {
		t.Fatalf("Get returned %v", v)
	}
}

func TestWeakZeroSizeTypeRejected(t *testing.T) {
	type marker struct{}
	ctx := context.Background()
	a := New[marker](cachekit.Options{})
	if ok, err := a.Set(ctx, "m", &marker{}, cachekit.DefaultTTL); ok || err != nil {
		t.Fatalf("Set of zero-size value=%v %v", ok, err)
	}
	if has, _ := a.Has(ctx, "m"); has {
		t.Fatalf("zero-size value must not be stored")
	}
}

func TestWeakRejectsNonObjects(t *testing.T) {
	ctx := context.Background()
	a := New[obj](cachekit.Options{})
	var nilObj *obj
	for _, v := range []any{42, "s", obj{}, nilObj, &struct{}{}} {
		if ok, _ := a.Set(ctx, "k", v, cachekit.DefaultTTL); ok {
			t.Fatalf("Set accepted %T", v)
		}
	}
	if has, _ := a.Has(ctx, "k"); has {
		t.Fatalf("rejected value must not be stored")
	}
}

func TestWeakCollectedEntryPruned(t *testing.T) {
	ctx := context.Background()
	a := New[obj](cachekit.Options{})
	setTemp(t, a, "k")
	runtime.GC()
	runtime.GC()

	if v, _ := a.Get(ctx, "k", "def"); v != "def" {
		t.Fatalf("collected referent returned %v", v)
	}
	if has, _ := a.Has(ctx, "k"); has {
		t.Fatalf("entry not pruned after failed fetch")
	}
	if a.Len() != 0 {
		t.Fatalf("Len=%d", a.Len())
	}
}

type collectRec struct {
	cachekit.NopHooks
	mu   sync.Mutex
	keys []string
}

func (c *collectRec) ReferenceCollected(key string) {
	c.mu.Lock()
	c.keys = append(c.keys, key)
	c.mu.Unlock()
}

func (c *collectRec) seen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

func TestWeakCleanupPrunesInBackground(t *testing.T) {
	hooks := &collectRec{}
	a := New[obj](cachekit.Options{Hooks: hooks})
	setTemp(t, a, "k")

	deadline := time.Now().Add(5 * time.Second)
	for hooks.seen() == 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if hooks.seen() != 1 {
		t.Fatalf("cleanup did not run")
	}
	if a.Len() != 0 {
		t.Fatalf("cleanup left the entry behind")
	}
}

func TestWeakCleanupIgnoresReplacedEntry(t *testing.T) {
	ctx := context.Background()
	a := New[obj](cachekit.Options{})
	setTemp(t, a, "k")
	keep := &obj{ID: 2}
	a.Set(ctx, "k", keep, cachekit.DefaultTTL)

	for range 5 {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
	if v, _ := a.Get(ctx, "k", nil); v != any(keep) {
		t.Fatalf("cleanup of the old referent removed the new entry")
	}
	runtime.KeepAlive(keep)
}

func TestWeakDeleteRefusedWhileFetching(t *testing.T) {
	ctx := context.Background()
	a := New[obj](cachekit.Options{})
	o := &obj{ID: 1}
	a.Set(ctx, "k", o, cachekit.DefaultTTL)

	k := a.Key("k")
	a.mu.Lock()
	a.fetching[k]++
	a.mu.Unlock()
	if ok, _ := a.Delete(ctx, "k"); ok {
		t.Fatalf("Delete must be refused while the key is being resolved")
	}
	a.collected(ref[obj]{key: "k", wp: a.refs[k]})
	if a.Len() != 1 {
		t.Fatalf("cleanup must honour the guard")
	}
	a.mu.Lock()
	delete(a.fetching, k)
	a.mu.Unlock()

	if ok, _ := a.Delete(ctx, "k"); !ok {
		t.Fatalf("Delete after fetch should succeed")
	}
	if ok, _ := a.Delete(ctx, "k"); ok {
		t.Fatalf("second Delete reports false")
	}
	runtime.KeepAlive(o)
}

func TestWeakCountersAndSerializer(t *testing.T) {
	ctx := context.Background()
	a := New[obj](cachekit.Options{DefaultSerializer: "json"})
	if a.DefaultSerializer() != "none" {
		t.Fatalf("serializer=%q", a.DefaultSerializer())
	}
	a.SetDefaultSerializer("msgpack")
	if a.DefaultSerializer() != "none" {
		t.Fatalf("SetDefaultSerializer must be a no-op")
	}
	o := &obj{}
	a.Set(ctx, "k", o, cachekit.DefaultTTL)
	if _, ok, _ := a.Increment(ctx, "k", 1); ok {
		t.Fatalf("Increment must fail")
	}
	if _, ok, _ := a.Decrement(ctx, "nope", 1); ok {
		t.Fatalf("Decrement must fail")
	}
	runtime.KeepAlive(o)
}

func TestWeakSetNonPositiveTTLDeletesAndClear(t *testing.T) {
	ctx := context.Background()
	a := New[obj](cachekit.Options{})
	o := &obj{}
	a.Set(ctx, "k", o, cachekit.DefaultTTL)
	if ok, _ := a.Set(ctx, "k", o, cachekit.Seconds(0)); !ok {
		t.Fatalf("ttl<1 should delete the existing key")
	}
	if has, _ := a.Has(ctx, "k"); has {
		t.Fatalf("key survived")
	}
	a.SetForever(ctx, "a1", o)
	a.SetForever(ctx, "b1", o)
	if ks, _ := a.Keys(ctx, "a"); len(ks) != 1 {
		t.Fatalf("Keys(a)=%v", ks)
	}
	a.Clear(ctx)
	if a.Len() != 0 {
		t.Fatalf("Clear left %d entries", a.Len())
	}
	runtime.KeepAlive(o)
}
