// Package shm is the shared-memory cache adapter: every adapter in the
// process stores into one Segment (unless given its own), isolated only by
// key prefix. Entries expire natively; Clear and Keys are scoped to the
// adapter prefix.
package shm

import (
	"context"
	"regexp"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/internal/cast"
)

const (
	Name          = "shm"
	DefaultPrefix = "ph-apcu-"
)

type Options struct {
	cachekit.Options
	// Segment defaults to DefaultSegment().
	Segment *Segment
}

type Adapter struct {
	*cachekit.Base
	seg   *Segment
	scope *regexp.Regexp
}

func New(opts Options) (*Adapter, error) {
	seg := opts.Segment
	if seg == nil {
		var err error
		if seg, err = DefaultSegment(); err != nil {
			return nil, err
		}
	}
	b := cachekit.NewBase(cachekit.BaseConfig{
		Name:              Name,
		Prefix:            DefaultPrefix,
		DefaultSerializer: cachekit.DefaultSerializerName,
	}, opts.Options)
	return &Adapter{
		Base:  b,
		seg:   seg,
		scope: regexp.MustCompile("^" + regexp.QuoteMeta(b.Prefix())),
	}, nil
}

// Segment returns the backing segment.
func (a *Adapter) Segment() *Segment { return a.seg }

func (a *Adapter) Get(_ context.Context, key string, def any) (any, error) {
	p, ok := a.seg.Load(a.Key(key))
	if !ok {
		return def, nil
	}
	return a.UnserializeBytes(key, p, def), nil
}

func (a *Adapter) Has(_ context.Context, key string) (bool, error) {
	return a.seg.Exists(a.Key(key)), nil
}

func (a *Adapter) Set(ctx context.Context, key string, value any, ttl cachekit.TTL) (bool, error) {
	if ttl.Deletes() {
		return a.Delete(ctx, key)
	}
	return a.store(key, value, a.TTLSeconds(ttl))
}

func (a *Adapter) SetForever(_ context.Context, key string, value any) (bool, error) {
	return a.store(key, value, 0)
}

func (a *Adapter) store(key string, value any, ttl int64) (bool, error) {
	p, err := a.SerializeBytes(value)
	if err != nil {
		return false, err
	}
	if err := a.seg.Store(a.Key(key), p, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) Delete(_ context.Context, key string) (bool, error) {
	return a.seg.Delete(a.Key(key)), nil
}

// Increment is atomic within the segment. An absent key is created at by
// without expiry; a non-numeric value is left alone and reports false.
func (a *Adapter) Increment(_ context.Context, key string, by int64) (int64, bool, error) {
	var (
		n      int64
		encErr error
	)
	ok, err := a.seg.Update(a.Key(key), func(cur []byte, found bool) ([]byte, bool) {
		if found {
			v, isNum := cast.Int64(a.UnserializeBytes(key, cur, nil))
			if !isNum {
				return nil, false
			}
			n = v
		}
		n += by
		next, err := a.SerializeBytes(n)
		if err != nil {
			encErr = err
			return nil, false
		}
		return next, true
	})
	if err == nil {
		err = encErr
	}
	if err != nil || !ok {
		return 0, false, err
	}
	return n, true, nil
}

func (a *Adapter) Decrement(ctx context.Context, key string, by int64) (int64, bool, error) {
	return a.Increment(ctx, key, -by)
}

// Clear removes the entries under this adapter's prefix only.
func (a *Adapter) Clear(context.Context) (bool, error) {
	if err := a.seg.DeleteMatching(a.scope); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) Keys(_ context.Context, prefix string) ([]string, error) {
	return a.FilterKeys(a.seg.Keys(a.scope), prefix), nil
}

var _ cachekit.Adapter = (*Adapter)(nil)
