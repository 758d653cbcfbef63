package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/adapter/memory"
)

func count(t *testing.T, m *Adapter, op, result string) float64 {
	t.Helper()
	return testutil.ToFloat64(m.ops.WithLabelValues(m.name, op, result))
}

func TestInstrumentCountsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := Instrument(memory.New(cachekit.Options{}), Options{Name: "mem", Registerer: reg})
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}
	ctx := context.Background()

	if v, _ := m.Get(ctx, "k", "def"); v != "def" {
		t.Fatalf("miss must return caller default, got %v", v)
	}
	m.Set(ctx, "k", "v", cachekit.DefaultTTL)
	if v, _ := m.Get(ctx, "k", nil); v != "v" {
		t.Fatalf("hit=%v", v)
	}
	m.Increment(ctx, "absent", 1)
	m.Delete(ctx, "k")

	if got := count(t, m, "get", ResultMiss); got != 1 {
		t.Fatalf("get miss=%v", got)
	}
	if got := count(t, m, "get", ResultHit); got != 1 {
		t.Fatalf("get hit=%v", got)
	}
	if got := count(t, m, "set", ResultOK); got != 1 {
		t.Fatalf("set ok=%v", got)
	}
	if got := count(t, m, "increment", ResultFail); got != 1 {
		t.Fatalf("increment fail=%v", got)
	}
	if got := count(t, m, "delete", ResultOK); got != 1 {
		t.Fatalf("delete ok=%v", got)
	}
	if n := testutil.CollectAndCount(m.dur); n != 4 {
		t.Fatalf("histogram series=%d", n)
	}
	if m.Prefix() != memory.DefaultPrefix {
		t.Fatalf("wrapped adapter methods must pass through")
	}
}

func TestInstrumentSharesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := Instrument(memory.New(cachekit.Options{}), Options{Registerer: reg})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := Instrument(memory.New(cachekit.Options{Prefix: cachekit.Prefix("other-")}), Options{Registerer: reg})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.ops != b.ops {
		t.Fatalf("collectors should be reused")
	}
	if b.name != "other-" {
		t.Fatalf("default name is the prefix, got %q", b.name)
	}
}
