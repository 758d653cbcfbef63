// Package rediskv layers the client-side options a Redis cache adapter needs
// (key prefix, payload serializer) over a go-redis client. It serves both the
// single-server and the cluster adapter.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cachekit/serializer"
)

var ErrCorrupt = errors.New("rediskv: undecodable payload")

// codecMark leads every payload written through the serializer. Counters are
// stored as bare decimal text for INCRBY, and no decimal starts with 0x00, so
// the two encodings never overlap.
const codecMark byte = 0x00

// Conn is a go-redis client with a key prefix and an optional serializer.
// Keys passed to Conn are unprefixed; keys it returns carry the prefix.
//
// With a serializer, integers are written as decimal text so INCRBY/DECRBY
// keep working on them and read back as int64; everything else is written as
// codecMark followed by the serializer output.
type Conn struct {
	rdb    goredis.UniversalClient
	prefix string
	codec  serializer.Serializer
}

func New(rdb goredis.UniversalClient, prefix string, codec serializer.Serializer) *Conn {
	return &Conn{rdb: rdb, prefix: prefix, codec: codec}
}

func (c *Conn) Client() goredis.UniversalClient { return c.rdb }
func (c *Conn) Prefix() string                  { return c.prefix }
func (c *Conn) Serializer() serializer.Serializer {
	return c.codec
}

// Get returns (value, found, err). Without a serializer the value is the raw
// string. A payload the serializer rejects yields found=true and ErrCorrupt.
func (c *Conn) Get(ctx context.Context, key string) (any, bool, error) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if c.codec == nil {
		return string(b), true, nil
	}
	if len(b) > 0 && b[0] == codecMark {
		b = b[1:]
	} else if n, ok := counter(b); ok {
		return n, true, nil
	}
	v, err := c.codec.Unserialize(b)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return v, true, nil
}

// Set writes value. ttl <= 0 stores without expiry.
func (c *Conn) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if c.codec != nil {
		if p, ok := counterText(value); ok {
			value = p
		} else {
			p, err := c.codec.Serialize(value)
			if err != nil {
				return err
			}
			value = append([]byte{codecMark}, p...)
		}
	}
	return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *Conn) Del(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Del(ctx, c.prefix+key).Result()
	return n > 0, err
}

func (c *Conn) IncrBy(ctx context.Context, key string, by int64) (int64, error) {
	return c.rdb.IncrBy(ctx, c.prefix+key, by).Result()
}

func (c *Conn) DecrBy(ctx context.Context, key string, by int64) (int64, error) {
	return c.rdb.DecrBy(ctx, c.prefix+key, by).Result()
}

// Keys lists the prefixed keys starting with prefix+sub, querying every
// master on a cluster.
func (c *Conn) Keys(ctx context.Context, sub string) ([]string, error) {
	pattern := escapeGlob(c.prefix+sub) + "*"
	cc, ok := c.rdb.(*goredis.ClusterClient)
	if !ok {
		return c.rdb.Keys(ctx, pattern).Result()
	}
	var (
		mu  sync.Mutex
		out []string
	)
	err := cc.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
		ks, err := node.Keys(ctx, pattern).Result()
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, ks...)
		mu.Unlock()
		return nil
	})
	return out, err
}

// FlushDB empties the selected database, or every master's on a cluster.
func (c *Conn) FlushDB(ctx context.Context) error {
	if cc, ok := c.rdb.(*goredis.ClusterClient); ok {
		return cc.ForEachMaster(ctx, func(ctx context.Context, node *goredis.Client) error {
			return node.FlushDB(ctx).Err()
		})
	}
	return c.rdb.FlushDB(ctx).Err()
}

// IsReplyError reports whether err is an error reply from the server (e.g.
// INCRBY on a non-integer value) rather than a transport failure.
func IsReplyError(err error) bool {
	if errors.Is(err, goredis.Nil) {
		return false
	}
	var re goredis.Error
	return errors.As(err, &re)
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// counterText renders integers INCRBY can operate on. Unsigned values above
// MaxInt64 are left to the serializer.
func counterText(v any) ([]byte, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.AppendInt(nil, rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return strconv.AppendUint(nil, u, 10), true
		}
	}
	return nil, false
}

func counter(b []byte) (int64, bool) {
	if len(b) == 0 || len(b) > 20 {
		return 0, false
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	return n, err == nil
}
