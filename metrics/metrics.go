// Package metrics instruments any cachekit.Adapter with Prometheus counters
// and latency histograms.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/cachekit"
)

const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultOK    = "ok"
	ResultFail  = "fail"
	ResultError = "error"
)

type Options struct {
	// Name is the adapter label value; defaults to the adapter prefix.
	Name string
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Namespace prefixes metric names; defaults to "cachekit".
	Namespace string
	// DurationBuckets in seconds.
	DurationBuckets []float64
}

// Adapter wraps another adapter and records every operation.
type Adapter struct {
	cachekit.Adapter
	name string
	ops  *prometheus.CounterVec
	dur  *prometheus.HistogramVec
}

// Instrument registers the collectors (reusing ones already registered under
// the same names) and wraps a.
func Instrument(a cachekit.Adapter, opts Options) (*Adapter, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "cachekit"
	}
	buckets := opts.DurationBuckets
	if buckets == nil {
		buckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1}
	}
	ops, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "operations_total",
		Help:      "Cache adapter operations by result.",
	}, []string{"adapter", "operation", "result"}))
	if err != nil {
		return nil, err
	}
	dur, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "operation_duration_seconds",
		Help:      "Cache adapter operation latency.",
		Buckets:   buckets,
	}, []string{"adapter", "operation"}))
	if err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		name = a.Prefix()
	}
	return &Adapter{Adapter: a, name: name, ops: ops, dur: dur}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Adapter) observe(op string, start time.Time, result string) {
	m.dur.WithLabelValues(m.name, op).Observe(time.Since(start).Seconds())
	m.ops.WithLabelValues(m.name, op, result).Inc()
}

func boolResult(ok bool, err error, yes, no string) string {
	switch {
	case err != nil:
		return ResultError
	case ok:
		return yes
	}
	return no
}

// missed is passed as the default to tell a miss from a stored value.
type missed struct{ _ byte }

var miss = &missed{}

func (m *Adapter) Get(ctx context.Context, key string, def any) (any, error) {
	start := time.Now()
	v, err := m.Adapter.Get(ctx, key, miss)
	hit := v != any(miss)
	m.observe("get", start, boolResult(hit, err, ResultHit, ResultMiss))
	if !hit || err != nil {
		return def, err
	}
	return v, nil
}

func (m *Adapter) Has(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := m.Adapter.Has(ctx, key)
	m.observe("has", start, boolResult(ok, err, ResultHit, ResultMiss))
	return ok, err
}

func (m *Adapter) Set(ctx context.Context, key string, value any, ttl cachekit.TTL) (bool, error) {
	start := time.Now()
	ok, err := m.Adapter.Set(ctx, key, value, ttl)
	m.observe("set", start, boolResult(ok, err, ResultOK, ResultFail))
	return ok, err
}

func (m *Adapter) SetForever(ctx context.Context, key string, value any) (bool, error) {
	start := time.Now()
	ok, err := m.Adapter.SetForever(ctx, key, value)
	m.observe("set_forever", start, boolResult(ok, err, ResultOK, ResultFail))
	return ok, err
}

func (m *Adapter) Delete(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := m.Adapter.Delete(ctx, key)
	m.observe("delete", start, boolResult(ok, err, ResultOK, ResultFail))
	return ok, err
}

func (m *Adapter) Increment(ctx context.Context, key string, by int64) (int64, bool, error) {
	start := time.Now()
	n, ok, err := m.Adapter.Increment(ctx, key, by)
	m.observe("increment", start, boolResult(ok, err, ResultOK, ResultFail))
	return n, ok, err
}

func (m *Adapter) Decrement(ctx context.Context, key string, by int64) (int64, bool, error) {
	start := time.Now()
	n, ok, err := m.Adapter.Decrement(ctx, key, by)
	m.observe("decrement", start, boolResult(ok, err, ResultOK, ResultFail))
	return n, ok, err
}

func (m *Adapter) Clear(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := m.Adapter.Clear(ctx)
	m.observe("clear", start, boolResult(ok, err, ResultOK, ResultFail))
	return ok, err
}

func (m *Adapter) Keys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	ks, err := m.Adapter.Keys(ctx, prefix)
	m.observe("keys", start, boolResult(true, err, ResultOK, ResultFail))
	return ks, err
}

var _ cachekit.Adapter = (*Adapter)(nil)
