package memcached

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/serializer"
)

// fakeClient is an in-memory memcached with the server's counter semantics.
type fakeClient struct {
	mu      sync.Mutex
	items   map[string]*memcache.Item
	pingErr error
}

func newFakeClient() *fakeClient { return &fakeClient{items: make(map[string]*memcache.Item)} }

func (f *fakeClient) Get(key string) (*memcache.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	cp := *it
	return &cp, nil
}

func (f *fakeClient) Set(it *memcache.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *it
	f.items[it.Key] = &cp
	return nil
}

func (f *fakeClient) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(f.items, key)
	return nil
}

func (f *fakeClient) incrDecr(key string, delta uint64, up bool) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[key]
	if !ok {
		return 0, memcache.ErrCacheMiss
	}
	cur, err := strconv.ParseUint(string(it.Value), 10, 64)
	if err != nil {
		return 0, errors.New("memcache: client error: cannot increment or decrement non-numeric value")
	}
	switch {
	case up:
		cur += delta
	case delta > cur:
		cur = 0
	default:
		cur -= delta
	}
	it.Value = strconv.AppendUint(nil, cur, 10)
	return cur, nil
}

func (f *fakeClient) Increment(key string, delta uint64) (uint64, error) {
	return f.incrDecr(key, delta, true)
}

func (f *fakeClient) Decrement(key string, delta uint64) (uint64, error) {
	return f.incrDecr(key, delta, false)
}

func (f *fakeClient) FlushAll() error {
	f.mu.Lock()
	clear(f.items)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Ping() error { return f.pingErr }

func (f *fakeClient) item(key string) (*memcache.Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[key]
	return it, ok
}

func newTestAdapter(t *testing.T, fc *fakeClient, mutate func(*Options)) *Adapter {
	t.Helper()
	opts := Options{Client: fc, Clock: func() time.Time { return time.Unix(1_700_000_000, 0) }}
	if mutate != nil {
		mutate(&opts)
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestMemcachedRoundTripWithNativePrefix(t *testing.T) {
	fc := newFakeClient()
	a := newTestAdapter(t, fc, nil)
	ctx := context.Background()

	if ok, err := a.Set(ctx, "k", map[string]any{"a": "b"}, cachekit.DefaultTTL); err != nil || !ok {
		t.Fatalf("Set: %v %v", ok, err)
	}
	it, ok := fc.item(DefaultPrefix + "k")
	if !ok {
		t.Fatalf("backend key must carry the prefix")
	}
	if it.Flags&flagSerialized == 0 || it.Expiration != int32(cachekit.DefaultLifetime) {
		t.Fatalf("item=%+v", it)
	}
	v, err := a.Get(ctx, "k", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m, ok := v.(map[string]any); !ok || m["a"] != "b" {
		t.Fatalf("Get=%#v", v)
	}
	if v, _ := a.Get(ctx, "nope", "def"); v != "def" {
		t.Fatalf("miss=%v", v)
	}
}

func TestMemcachedSerializerOffloadEquivalence(t *testing.T) {
	value := map[string]any{"name": "Ada", "tags": []any{"x", "y"}}
	ctx := context.Background()

	native := newTestAdapter(t, newFakeClient(), func(o *Options) { o.DefaultSerializer = "php" })
	generic := newTestAdapter(t, newFakeClient(), func(o *Options) { o.Serializer = serializer.JSON{} })

	var results []any
	for _, a := range []*Adapter{native, generic} {
		if _, err := a.Set(ctx, "k", value, cachekit.DefaultTTL); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := a.Get(ctx, "k", nil)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		results = append(results, got)
	}
	if native.DefaultSerializer() != "" {
		t.Fatalf("offloaded serializer name should be blank, got %q", native.DefaultSerializer())
	}
	if generic.DefaultSerializer() != "json" {
		t.Fatalf("a provided serializer stays on the adapter, got %q", generic.DefaultSerializer())
	}
	for i, r := range results {
		m, ok := r.(map[string]any)
		if !ok || m["name"] != "Ada" || len(m["tags"].([]any)) != 2 {
			t.Fatalf("result %d: %#v", i, r)
		}
	}
}

func TestMemcachedCounters(t *testing.T) {
	fc := newFakeClient()
	a := newTestAdapter(t, fc, nil)
	ctx := context.Background()

	if _, ok, err := a.Increment(ctx, "nope", 1); ok || err != nil {
		t.Fatalf("absent increment must fail softly: %v %v", ok, err)
	}
	if _, ok, _ := a.Decrement(ctx, "nope", 1); ok {
		t.Fatalf("absent decrement must fail")
	}

	a.Set(ctx, "c", 10, cachekit.DefaultTTL)
	if n, ok, _ := a.Increment(ctx, "c", 5); !ok || n != 15 {
		t.Fatalf("Increment=%d %v", n, ok)
	}
	if n, ok, _ := a.Decrement(ctx, "c", 100); !ok || n != 0 {
		t.Fatalf("decrement clamps at zero: %d %v", n, ok)
	}
	if v, _ := a.Get(ctx, "c", nil); v != int64(0) {
		t.Fatalf("counter reads back as int64, got %#v", v)
	}

	a.Set(ctx, "s", "text", cachekit.DefaultTTL)
	if _, ok, err := a.Increment(ctx, "s", 1); ok || err != nil {
		t.Fatalf("non-numeric increment: %v %v", ok, err)
	}
}

func TestMemcachedExpirationEncoding(t *testing.T) {
	fc := newFakeClient()
	a := newTestAdapter(t, fc, nil)
	ctx := context.Background()

	a.Set(ctx, "short", "v", cachekit.Seconds(60))
	a.Set(ctx, "long", "v", cachekit.Interval(31*24*time.Hour))
	a.SetForever(ctx, "forever", "v")

	if it, _ := fc.item(DefaultPrefix + "short"); it.Expiration != 60 {
		t.Fatalf("short=%d", it.Expiration)
	}
	want := int32(1_700_000_000 + 31*24*3600)
	if it, _ := fc.item(DefaultPrefix + "long"); it.Expiration != want {
		t.Fatalf("long ttl must be absolute: %d want %d", it.Expiration, want)
	}
	if it, _ := fc.item(DefaultPrefix + "forever"); it.Expiration != 0 {
		t.Fatalf("forever=%d", it.Expiration)
	}
}

func TestMemcachedSetNonPositiveTTLDeletes(t *testing.T) {
	fc := newFakeClient()
	a := newTestAdapter(t, fc, nil)
	ctx := context.Background()
	a.Set(ctx, "k", "v", cachekit.DefaultTTL)
	if ok, _ := a.Set(ctx, "k", "v", cachekit.Seconds(0)); !ok {
		t.Fatalf("delete of existing key should report true")
	}
	if has, _ := a.Has(ctx, "k"); has {
		t.Fatalf("key survived")
	}
	if ok, _ := a.Set(ctx, "k", "v", cachekit.Seconds(-5)); ok {
		t.Fatalf("delete of absent key should report false")
	}
}

func TestMemcachedKeysAndFullFlush(t *testing.T) {
	fc := newFakeClient()
	a := newTestAdapter(t, fc, func(o *Options) { o.Prefix = cachekit.Prefix("p") })
	b := newTestAdapter(t, fc, func(o *Options) { o.Prefix = cachekit.Prefix("q") })
	ctx := context.Background()
	for _, k := range []string{"a1", "a2", "b1"} {
		a.Set(ctx, k, 1, cachekit.DefaultTTL)
	}
	b.Set(ctx, "a1", 1, cachekit.DefaultTTL)

	ks, err := a.Keys(ctx, "a")
	if err != nil || len(ks) != 2 || ks[0] != "pa1" || ks[1] != "pa2" {
		t.Fatalf("Keys(a)=%v %v", ks, err)
	}
	a.Delete(ctx, "a2")
	if ks, _ := a.Keys(ctx, ""); len(ks) != 2 {
		t.Fatalf("deleted key still listed: %v", ks)
	}

	if ok, err := a.Clear(ctx); !ok || err != nil {
		t.Fatalf("Clear=%v %v", ok, err)
	}
	if has, _ := b.Has(ctx, "a1"); has {
		t.Fatalf("flush must remove other prefixes too")
	}
	if ks, _ := a.Keys(ctx, ""); len(ks) != 0 {
		t.Fatalf("keys after flush: %v", ks)
	}
}

func TestMemcachedCorruptPayloadIsMiss(t *testing.T) {
	fc := newFakeClient()
	a := newTestAdapter(t, fc, nil)
	fc.Set(&memcache.Item{Key: DefaultPrefix + "bad", Value: []byte("{nope"), Flags: flagSerialized})
	if v, err := a.Get(context.Background(), "bad", "def"); v != "def" || err != nil {
		t.Fatalf("Get=%v %v", v, err)
	}
	if has, err := a.Has(context.Background(), "bad"); has || err != nil {
		t.Fatalf("Has must agree with Get on a corrupt payload: %v %v", has, err)
	}
}

func TestMemcachedHasAgreesWithAdapterSerializer(t *testing.T) {
	fc := newFakeClient()
	a := newTestAdapter(t, fc, func(o *Options) { o.DefaultSerializer = "protobuf" })
	ctx := context.Background()
	fc.Set(&memcache.Item{Key: DefaultPrefix + "bad", Value: []byte{0xff, 0x01}})
	if has, err := a.Has(ctx, "bad"); has || err != nil {
		t.Fatalf("Has=%v %v", has, err)
	}
	if ok, err := a.Set(ctx, "msg", wrapperspb.String("hi"), cachekit.DefaultTTL); !ok || err != nil {
		t.Fatalf("Set=%v %v", ok, err)
	}
	if has, _ := a.Has(ctx, "msg"); !has {
		t.Fatalf("stored message must be present")
	}
}

func TestMemcachedExpirationClampsFarFuture(t *testing.T) {
	fc := newFakeClient()
	a := newTestAdapter(t, fc, nil)
	a.Set(context.Background(), "k", "v", cachekit.Seconds(1<<40))
	if it, _ := fc.item(DefaultPrefix + "k"); it.Expiration != math.MaxInt32 {
		t.Fatalf("expiration=%d want %d", it.Expiration, int32(math.MaxInt32))
	}
}

func TestMemcachedConnectError(t *testing.T) {
	fc := newFakeClient()
	fc.pingErr = errors.New("connection refused")
	a := newTestAdapter(t, fc, nil)
	_, err := a.Client(context.Background())
	var ce *cachekit.ConnectionError
	if !errors.As(err, &ce) || ce.Adapter != Name {
		t.Fatalf("expected ConnectionError, got %v", err)
	}

	fc.pingErr = nil
	if _, err := a.Client(context.Background()); err != nil {
		t.Fatalf("failed connection must not be memoized: %v", err)
	}
}

func TestMemcachedPersistentSharesIndex(t *testing.T) {
	fc := newFakeClient()
	id := t.Name()
	a := newTestAdapter(t, fc, func(o *Options) { o.PersistentID = id })
	b := newTestAdapter(t, fc, func(o *Options) { o.PersistentID = id })
	ctx := context.Background()
	a.Set(ctx, "k", "v", cachekit.DefaultTTL)
	b.Clear(ctx)
	if ks, _ := a.Keys(ctx, ""); len(ks) != 0 {
		t.Fatalf("shared index not flushed: %v", ks)
	}
}

func TestMemcachedConfigErrors(t *testing.T) {
	cases := []Options{
		{Servers: []Server{{Host: ""}}},
		{Servers: []Server{{Host: "h", Port: 70000}}},
		{Servers: []Server{{Host: "h", Weight: -1}}},
		{Timeout: -time.Second},
	}
	for i, opts := range cases {
		_, err := New(opts)
		var ce *cachekit.ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("case %d: expected ConfigError, got %v", i, err)
		}
	}
}
