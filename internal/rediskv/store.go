package rediskv

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/serializer"
)

// Dialer builds and verifies the go-redis client. owned reports whether the
// store may close it.
type Dialer func(ctx context.Context) (rdb goredis.UniversalClient, owned bool, err error)

// Store implements cachekit.Adapter on top of a lazily dialed Conn. The
// single-server and cluster adapters embed it.
type Store struct {
	*cachekit.Base
	dial Dialer

	mu       sync.Mutex
	conn     *Conn
	owned    bool
	codec    serializer.Serializer
	prepared bool // serializer offload decided
}

func NewStore(b *cachekit.Base, dial Dialer) *Store {
	return &Store{Base: b, dial: dial}
}

// Conn returns the memoized connection, dialing it on first use. A failed
// dial is not memoized.
func (s *Store) Conn(ctx context.Context) (*Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	rdb, owned, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	if !s.prepared {
		codec, err := s.Offload(serializer.Kind.Native)
		if err != nil {
			if owned {
				_ = rdb.Close()
			}
			return nil, err
		}
		s.codec, s.prepared = codec, true
	}
	s.conn = New(rdb, s.Prefix(), s.codec)
	s.owned = owned
	s.Connected()
	return s.conn, nil
}

func (s *Store) Get(ctx context.Context, key string, def any) (any, error) {
	c, err := s.Conn(ctx)
	if err != nil {
		return def, err
	}
	v, ok, err := c.Get(ctx, key)
	if errors.Is(err, ErrCorrupt) {
		s.Corrupt(key, err)
		return def, nil
	}
	if err != nil || !ok {
		return def, err
	}
	return s.Unserialize(key, v, def), nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.Conn(ctx)
	if err != nil {
		return false, err
	}
	v, err := s.Get(ctx, key, absent)
	if err != nil {
		return false, err
	}
	return v != absent, nil
}

// absent is the Get default Has uses to tell a miss from a stored value.
var absent any = new(struct{ _ byte })

func (s *Store) Set(ctx context.Context, key string, value any, ttl cachekit.TTL) (bool, error) {
	if ttl.Deletes() {
		return s.Delete(ctx, key)
	}
	return s.write(ctx, key, value, ttlDuration(s.TTLSeconds(ttl)))
}

func (s *Store) SetForever(ctx context.Context, key string, value any) (bool, error) {
	return s.write(ctx, key, value, 0)
}

func (s *Store) write(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	c, err := s.Conn(ctx)
	if err != nil {
		return false, err
	}
	payload, err := s.Serialize(value)
	if err != nil {
		return false, err
	}
	if err := c.Set(ctx, key, payload, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	c, err := s.Conn(ctx)
	if err != nil {
		return false, err
	}
	return c.Del(ctx, key)
}

// Increment maps to INCRBY. An absent key is created at by; a value that is
// not an integer is a soft failure.
func (s *Store) Increment(ctx context.Context, key string, by int64) (int64, bool, error) {
	c, err := s.Conn(ctx)
	if err != nil {
		return 0, false, err
	}
	return counterResult(c.IncrBy(ctx, key, by))
}

func (s *Store) Decrement(ctx context.Context, key string, by int64) (int64, bool, error) {
	c, err := s.Conn(ctx)
	if err != nil {
		return 0, false, err
	}
	return counterResult(c.DecrBy(ctx, key, by))
}

func counterResult(n int64, err error) (int64, bool, error) {
	switch {
	case err == nil:
		return n, true, nil
	case IsReplyError(err):
		return 0, false, nil
	}
	return 0, false, err
}

// Clear flushes the whole database (every master on a cluster), including
// keys written by other prefixes.
func (s *Store) Clear(ctx context.Context) (bool, error) {
	c, err := s.Conn(ctx)
	if err != nil {
		return false, err
	}
	if err := c.FlushDB(ctx); err != nil {
		return false, err
	}
	s.FullFlush()
	return true, nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	c, err := s.Conn(ctx)
	if err != nil {
		return nil, err
	}
	all, err := c.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return s.FilterKeys(all, prefix), nil
}

// Close releases the client when the store created it and it is not shared.
// Safe to call multiple times.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	c, owned := s.conn, s.owned
	s.conn, s.owned = nil, false
	if owned {
		if err := c.Client().Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

var _ cachekit.Adapter = (*Store)(nil)

// maxTTLSeconds is the longest lifetime a time.Duration can carry.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// ttlDuration converts seconds to a Duration, saturating instead of wrapping.
func ttlDuration(secs int64) time.Duration {
	if secs > maxTTLSeconds {
		secs = maxTTLSeconds
	}
	return time.Duration(secs) * time.Second
}
