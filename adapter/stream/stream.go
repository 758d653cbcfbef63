// Package stream is the filesystem cache adapter: one file per key under
// StorageDir/<prefix>/<shard>/<key>, each holding a msgpack envelope with the
// creation time, the TTL and the serialized content.
//
// Expired entries read as absent but stay on disk until overwritten or
// cleared. Counters are read-modify-write without a cross-process lock, so
// concurrent Increment calls on one key can lose updates.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/internal/cast"
	"github.com/unkn0wn-root/cachekit/internal/keys"
)

const (
	Name          = "stream"
	DefaultPrefix = "ph-strm"

	shardDepth = 2
	dirPerm    = 0o777
	filePerm   = 0o666
)

type Options struct {
	cachekit.Options
	// StorageDir is the cache root. Required.
	StorageDir string
	// Clock overrides time.Now for expiry.
	Clock func() time.Time
}

type Adapter struct {
	*cachekit.Base
	root string
	now  func() time.Time
}

func New(opts Options) (*Adapter, error) {
	if strings.TrimSpace(opts.StorageDir) == "" {
		return nil, &cachekit.ConfigError{Adapter: Name, Option: "StorageDir", Err: cachekit.ErrMissingOption}
	}
	b := cachekit.NewBase(cachekit.BaseConfig{
		Name:              Name,
		Prefix:            DefaultPrefix,
		DefaultSerializer: cachekit.DefaultSerializerName,
	}, opts.Options)
	if strings.ContainsAny(b.Prefix(), `/\`) || b.Prefix() == "." || b.Prefix() == ".." {
		return nil, &cachekit.ConfigError{Adapter: Name, Option: "Prefix", Err: errors.New("must be a single path element")}
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Adapter{
		Base: b,
		root: filepath.Join(opts.StorageDir, b.Prefix()),
		now:  now,
	}, nil
}

// Root is the directory holding this adapter's files.
func (a *Adapter) Root() string { return a.root }

func (a *Adapter) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, "/\\\x00") {
		return "", fmt.Errorf("%w: %q", cachekit.ErrInvalidKey, key)
	}
	return filepath.Join(a.root, keys.Shard(key, shardDepth), key), nil
}

// load returns the live envelope for key. Missing, corrupt and expired files
// report ok=false; only I/O failures are errors.
func (a *Adapter) load(key string) (env envelope, ok bool, err error) {
	p, err := a.path(key)
	if err != nil {
		return env, false, err
	}
	raw, err := readLocked(p)
	if errors.Is(err, fs.ErrNotExist) {
		return env, false, nil
	}
	if err != nil {
		return env, false, err
	}
	env, err = decodeEnvelope(raw)
	if err != nil {
		a.Corrupt(key, err)
		return env, false, nil
	}
	if env.expired(a.now().Unix()) {
		return env, false, nil
	}
	return env, true, nil
}

func readLocked(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := lockShared(f); err != nil {
		return nil, err
	}
	defer unlock(f)
	return io.ReadAll(f)
}

func writeLocked(p string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE, filePerm)
	if err != nil {
		return err
	}
	if err := lockExclusive(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return err
	}
	_, werr := f.Write(b)
	_ = unlock(f)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

func (a *Adapter) Get(_ context.Context, key string, def any) (any, error) {
	env, ok, err := a.load(key)
	if err != nil || !ok {
		return def, err
	}
	return a.UnserializeBytes(key, env.Content, def), nil
}

func (a *Adapter) Has(_ context.Context, key string) (bool, error) {
	_, ok, err := a.load(key)
	return ok, err
}

func (a *Adapter) Set(ctx context.Context, key string, value any, ttl cachekit.TTL) (bool, error) {
	if ttl.Deletes() {
		return a.Delete(ctx, key)
	}
	return a.store(key, value, lifetime{seconds: a.TTLSeconds(ttl)})
}

func (a *Adapter) SetForever(_ context.Context, key string, value any) (bool, error) {
	return a.store(key, value, lifetime{forever: true})
}

func (a *Adapter) store(key string, value any, ttl lifetime) (bool, error) {
	p, err := a.path(key)
	if err != nil {
		return false, err
	}
	content, err := a.SerializeBytes(value)
	if err != nil {
		return false, err
	}
	raw, err := encodeEnvelope(envelope{Created: a.now().Unix(), TTL: ttl, Content: content})
	if err != nil {
		return false, err
	}
	if err := writeLocked(p, raw); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) Delete(_ context.Context, key string) (bool, error) {
	p, err := a.path(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, err
}

// Increment is Get, add, Set with the default TTL. It is not atomic.
func (a *Adapter) Increment(ctx context.Context, key string, by int64) (int64, bool, error) {
	if ok, err := a.Has(ctx, key); err != nil || !ok {
		return 0, false, err
	}
	v, err := a.Get(ctx, key, nil)
	if err != nil {
		return 0, false, err
	}
	n, _ := cast.Int64(v)
	n += by
	ok, err := a.Set(ctx, key, n, cachekit.DefaultTTL)
	if err != nil || !ok {
		return 0, false, err
	}
	return n, true, nil
}

func (a *Adapter) Decrement(ctx context.Context, key string, by int64) (int64, bool, error) {
	return a.Increment(ctx, key, -by)
}

// Clear removes every file under the adapter root, deepest first, and prunes
// the emptied shard directories. It stops at the first file it cannot remove.
func (a *Adapter) Clear(context.Context) (bool, error) {
	var files, dirs []string
	err := filepath.WalkDir(a.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != a.root {
				dirs = append(dirs, p)
			}
			return nil
		}
		files = append(files, p)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	for _, f := range slices.Backward(files) {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
	}
	for _, d := range slices.Backward(dirs) {
		_ = os.Remove(d) // non-empty if a writer raced the walk
	}
	return true, nil
}

// Keys lists prefix+filename for every file under the adapter root,
// expired or not, filtered by prefix.
func (a *Adapter) Keys(_ context.Context, prefix string) ([]string, error) {
	var all []string
	err := filepath.WalkDir(a.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			all = append(all, a.Key(d.Name()))
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	slices.Sort(all)
	return a.FilterKeys(all, prefix), nil
}

var _ cachekit.Adapter = (*Adapter)(nil)
