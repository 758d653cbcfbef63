package factory

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/adapter/memory"
	"github.com/unkn0wn-root/cachekit/adapter/redis"
	"github.com/unkn0wn-root/cachekit/adapter/stream"
	"github.com/unkn0wn-root/cachekit/config"
)

func TestNewAppliesCommonFields(t *testing.T) {
	p := "app-"
	a, err := New(config.Adapter{
		Type:              config.TypeMemory,
		Prefix:            &p,
		Lifetime:          60,
		DefaultSerializer: "msgpack",
	}, cachekit.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := a.(*memory.Adapter); !ok {
		t.Fatalf("type=%T", a)
	}
	if a.Prefix() != "app-" || a.Lifetime() != 60 || a.DefaultSerializer() != "msgpack" {
		t.Fatalf("prefix=%q lifetime=%d serializer=%q", a.Prefix(), a.Lifetime(), a.DefaultSerializer())
	}
}

func TestNewStream(t *testing.T) {
	dir := t.TempDir()
	a, err := New(config.Adapter{Type: config.TypeStream, StorageDir: dir}, cachekit.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := a.(*stream.Adapter); !ok {
		t.Fatalf("type=%T", a)
	}
	ctx := context.Background()
	if ok, err := a.Set(ctx, "k", "v", cachekit.DefaultTTL); err != nil || !ok {
		t.Fatalf("Set ok=%v err=%v", ok, err)
	}
	if _, err := New(config.Adapter{Type: config.TypeStream}, cachekit.Options{}); err == nil {
		t.Fatalf("missing storage_dir should fail")
	}
}

func TestNewShmDedicatedSegment(t *testing.T) {
	a, err := New(config.Adapter{Type: config.TypeShm, Segment: &config.Segment{Shards: 16}}, cachekit.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if n, ok, err := a.Increment(ctx, "hits", 3); err != nil || !ok || n != 3 {
		t.Fatalf("Increment n=%d ok=%v err=%v", n, ok, err)
	}
	if _, err := New(config.Adapter{Type: config.TypeShm, Segment: &config.Segment{Shards: -1}}, cachekit.Options{}); err == nil {
		t.Fatalf("negative shards should fail")
	}
}

func TestBuildAndClose(t *testing.T) {
	mr := miniredis.RunT(t)
	port, _ := strconv.Atoi(mr.Port())
	f := &config.File{Adapters: map[string]config.Adapter{
		"local":  {Type: config.TypeMemory},
		"shared": {Type: config.TypeRedis, Host: mr.Host(), Port: port},
	}}
	built, err := Build(f, cachekit.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r, ok := built["shared"].(*redis.Adapter)
	if !ok {
		t.Fatalf("shared type=%T", built["shared"])
	}
	ctx := context.Background()
	if ok, err := r.Set(ctx, "k", 1, cachekit.DefaultTTL); err != nil || !ok {
		t.Fatalf("Set ok=%v err=%v", ok, err)
	}
	for name, a := range built {
		if err := Close(ctx, a); err != nil {
			t.Fatalf("Close %s: %v", name, err)
		}
	}
}

func TestBuildReportsFailingAdapter(t *testing.T) {
	f := &config.File{Adapters: map[string]config.Adapter{
		"ok":     {Type: config.TypeMemory},
		"broken": {Type: config.TypeRedisCluster},
	}}
	_, err := Build(f, cachekit.Options{})
	if err == nil || !strings.Contains(err.Error(), `"broken"`) {
		t.Fatalf("err=%v", err)
	}
	if !errors.Is(err, cachekit.ErrMissingOption) {
		t.Fatalf("expected ErrMissingOption, got %v", err)
	}
}

func TestNewUnknownType(t *testing.T) {
	var ce *cachekit.ConfigError
	if _, err := New(config.Adapter{Type: "weak"}, cachekit.Options{}); !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
