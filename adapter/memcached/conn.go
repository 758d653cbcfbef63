package memcached

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/cachekit/serializer"
)

// Client is the subset of *memcache.Client the adapter uses.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
	Increment(key string, delta uint64) (uint64, error)
	Decrement(key string, delta uint64) (uint64, error)
	FlushAll() error
	Ping() error
}

var _ Client = (*memcache.Client)(nil)

const (
	// flagSerialized marks items written through the client serializer.
	flagSerialized uint32 = 1

	// Memcached reads expirations above 30 days as absolute Unix times.
	maxRelativeTTL = 60 * 60 * 24 * 30
)

var errCorrupt = errors.New("memcached: undecodable payload")

// server is one client plus the keys written through it. Memcached cannot
// enumerate its keys, so the index is what Keys reports.
type server struct {
	client Client

	mu   sync.Mutex
	keys map[string]struct{}
}

func newServer(c Client) *server {
	return &server{client: c, keys: make(map[string]struct{})}
}

func (s *server) remember(k string) {
	s.mu.Lock()
	s.keys[k] = struct{}{}
	s.mu.Unlock()
}

func (s *server) forget(k string) {
	s.mu.Lock()
	delete(s.keys, k)
	s.mu.Unlock()
}

// conn applies the adapter prefix and the offloaded serializer.
type conn struct {
	*server
	prefix string
	codec  serializer.Serializer
	now    func() time.Time
}

func (c *conn) get(key string) (any, bool, error) {
	it, err := c.client.Get(c.prefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if c.codec == nil {
		return string(it.Value), true, nil
	}
	if it.Flags&flagSerialized == 0 {
		if n, err := strconv.ParseInt(string(it.Value), 10, 64); err == nil {
			return n, true, nil
		}
		return string(it.Value), true, nil
	}
	v, err := c.codec.Unserialize(it.Value)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return v, true, nil
}

func (c *conn) set(key string, value any, ttl int64) error {
	it := &memcache.Item{Key: c.prefix + key, Expiration: c.expiration(ttl)}
	switch {
	case c.codec == nil:
		p, err := serializer.Raw(value)
		if err != nil {
			return err
		}
		it.Value = p
	case isInteger(value):
		p, _ := serializer.Raw(value)
		it.Value = p
	default:
		p, err := c.codec.Serialize(value)
		if err != nil {
			return err
		}
		it.Value, it.Flags = p, flagSerialized
	}
	if err := c.client.Set(it); err != nil {
		return err
	}
	c.remember(it.Key)
	return nil
}

// expiration converts a relative TTL to memcached's encoding. ttl <= 0 never
// expires.
func (c *conn) expiration(ttl int64) int32 {
	switch {
	case ttl <= 0:
		return 0
	case ttl > maxRelativeTTL:
		now := c.now().Unix()
		if ttl > math.MaxInt32-now {
			return math.MaxInt32
		}
		return int32(now + ttl)
	}
	return int32(ttl)
}

func (c *conn) del(key string) (bool, error) {
	err := c.client.Delete(c.prefix + key)
	c.forget(c.prefix + key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, memcache.ErrCacheMiss):
		return false, nil
	}
	return false, err
}

// add applies by with incr/decr. Memcached clamps decrements at 0.
func (c *conn) add(key string, by int64) (int64, bool, error) {
	var (
		n   uint64
		err error
	)
	if by >= 0 {
		n, err = c.client.Increment(c.prefix+key, uint64(by))
	} else {
		n, err = c.client.Decrement(c.prefix+key, uint64(-by))
	}
	switch {
	case err == nil:
		return int64(n), true, nil
	case errors.Is(err, memcache.ErrCacheMiss), isClientError(err):
		return 0, false, nil
	}
	return 0, false, err
}

func (c *conn) list(sub string) []string {
	want := c.prefix + sub
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for k := range c.keys {
		if strings.HasPrefix(k, want) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func (c *conn) flush() error {
	if err := c.client.FlushAll(); err != nil {
		return err
	}
	c.mu.Lock()
	clear(c.keys)
	c.mu.Unlock()
	return nil
}

// isClientError matches CLIENT_ERROR replies, e.g. incr on a non-numeric value.
func isClientError(err error) bool {
	return strings.HasPrefix(err.Error(), "memcache: client error")
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}
