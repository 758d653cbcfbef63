// Package memcached is the cache adapter for Memcached.
//
// Like the Redis adapters, it sets the key prefix and (for gob, json, cbor
// and msgpack) the serializer on its client connection and passes logical
// keys through. Memcached cannot list keys: Keys reports the keys written
// through this process's connection. Clear flushes every server.
package memcached

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/internal/pool"
	"github.com/unkn0wn-root/cachekit/serializer"
)

const (
	Name          = "memcached"
	DefaultPrefix = "ph-memc-"
	DefaultHost   = "127.0.0.1"
	DefaultPort   = 11211
)

// Server is one memcached node. Weight biases key distribution towards it.
type Server struct {
	Host   string
	Port   int
	Weight int // default 1
}

func (s Server) addr() string { return net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) }

type Options struct {
	cachekit.Options

	// Servers defaults to DefaultHost:DefaultPort.
	Servers []Server

	Timeout      time.Duration // per operation; 0 = client default
	MaxIdleConns int

	// PersistentID shares one client (and its key index) between adapters.
	PersistentID string

	// Client is a pre-built client; Servers are ignored.
	Client Client

	// Clock overrides time.Now for long TTL conversion.
	Clock func() time.Time
}

var servers pool.Registry[*server]

type Adapter struct {
	*cachekit.Base
	opts Options

	mu       sync.Mutex
	conn     *conn
	codec    serializer.Serializer
	prepared bool
}

func New(opts Options) (*Adapter, error) {
	if len(opts.Servers) == 0 {
		opts.Servers = []Server{{Host: DefaultHost, Port: DefaultPort, Weight: 1}}
	}
	for i, s := range opts.Servers {
		opt := fmt.Sprintf("Servers[%d]", i)
		switch {
		case strings.TrimSpace(s.Host) == "":
			return nil, &cachekit.ConfigError{Adapter: Name, Option: opt, Err: errors.New("empty host")}
		case s.Port < 0 || s.Port > 65535:
			return nil, &cachekit.ConfigError{Adapter: Name, Option: opt, Err: fmt.Errorf("port out of range: %d", s.Port)}
		case s.Weight < 0:
			return nil, &cachekit.ConfigError{Adapter: Name, Option: opt, Err: fmt.Errorf("negative weight: %d", s.Weight)}
		}
		if s.Port == 0 {
			opts.Servers[i].Port = DefaultPort
		}
		if s.Weight == 0 {
			opts.Servers[i].Weight = 1
		}
	}
	if opts.Timeout < 0 || opts.MaxIdleConns < 0 {
		return nil, &cachekit.ConfigError{Adapter: Name, Option: "Timeout/MaxIdleConns", Err: errors.New("must not be negative")}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	b := cachekit.NewBase(cachekit.BaseConfig{
		Name:              Name,
		Prefix:            DefaultPrefix,
		DefaultSerializer: cachekit.DefaultSerializerName,
	}, opts.Options)
	return &Adapter{Base: b, opts: opts}, nil
}

// Client returns the memcached client, connecting on first use.
func (a *Adapter) Client(ctx context.Context) (Client, error) {
	c, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	return c.client, nil
}

func (a *Adapter) connect(context.Context) (*conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		return a.conn, nil
	}
	var (
		srv *server
		err error
	)
	if a.opts.PersistentID != "" {
		srv, err = servers.Get(a.opts.PersistentID, a.dial)
	} else {
		srv, err = a.dial()
	}
	if err != nil {
		return nil, err
	}
	if !a.prepared {
		codec, err := a.Offload(serializer.Kind.Native)
		if err != nil {
			return nil, err
		}
		a.codec, a.prepared = codec, true
	}
	a.conn = &conn{server: srv, prefix: a.Prefix(), codec: a.codec, now: a.opts.Clock}
	a.Connected()
	return a.conn, nil
}

func (a *Adapter) dial() (*server, error) {
	if a.opts.Client != nil {
		if err := a.opts.Client.Ping(); err != nil {
			return nil, a.ConnectFailed("client", err)
		}
		return newServer(a.opts.Client), nil
	}
	addrs := make([]string, 0, len(a.opts.Servers))
	for _, s := range a.opts.Servers {
		for range s.Weight {
			addrs = append(addrs, s.addr())
		}
	}
	target := strings.Join(addrs, ",")
	var ss memcache.ServerList
	if err := ss.SetServers(addrs...); err != nil {
		return nil, a.ConnectFailed(target, err)
	}
	mc := memcache.NewFromSelector(&ss)
	mc.Timeout = a.opts.Timeout
	mc.MaxIdleConns = a.opts.MaxIdleConns
	if err := mc.Ping(); err != nil {
		return nil, a.ConnectFailed(target, err)
	}
	return newServer(mc), nil
}

func (a *Adapter) Get(ctx context.Context, key string, def any) (any, error) {
	c, err := a.connect(ctx)
	if err != nil {
		return def, err
	}
	v, ok, err := c.get(key)
	if errors.Is(err, errCorrupt) {
		a.Corrupt(key, err)
		return def, nil
	}
	if err != nil || !ok {
		return def, err
	}
	return a.Unserialize(key, v, def), nil
}

func (a *Adapter) Has(ctx context.Context, key string) (bool, error) {
	v, err := a.Get(ctx, key, absent)
	if err != nil {
		return false, err
	}
	return v != absent, nil
}

// absent is the Get default Has uses to tell a miss from a stored value.
var absent any = new(struct{ _ byte })

func (a *Adapter) Set(ctx context.Context, key string, value any, ttl cachekit.TTL) (bool, error) {
	if ttl.Deletes() {
		return a.Delete(ctx, key)
	}
	return a.write(ctx, key, value, a.TTLSeconds(ttl))
}

func (a *Adapter) SetForever(ctx context.Context, key string, value any) (bool, error) {
	return a.write(ctx, key, value, 0)
}

func (a *Adapter) write(ctx context.Context, key string, value any, ttl int64) (bool, error) {
	c, err := a.connect(ctx)
	if err != nil {
		return false, err
	}
	payload, err := a.Serialize(value)
	if err != nil {
		return false, err
	}
	if err := c.set(key, payload, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) Delete(ctx context.Context, key string) (bool, error) {
	c, err := a.connect(ctx)
	if err != nil {
		return false, err
	}
	return c.del(key)
}

// Increment maps to incr. An absent or non-numeric key reports false.
func (a *Adapter) Increment(ctx context.Context, key string, by int64) (int64, bool, error) {
	c, err := a.connect(ctx)
	if err != nil {
		return 0, false, err
	}
	return c.add(key, by)
}

// Decrement maps to decr, which never goes below 0.
func (a *Adapter) Decrement(ctx context.Context, key string, by int64) (int64, bool, error) {
	c, err := a.connect(ctx)
	if err != nil {
		return 0, false, err
	}
	return c.add(key, -by)
}

// Clear flushes every server, including keys under other prefixes.
func (a *Adapter) Clear(ctx context.Context) (bool, error) {
	c, err := a.connect(ctx)
	if err != nil {
		return false, err
	}
	if err := c.flush(); err != nil {
		return false, err
	}
	a.FullFlush()
	return true, nil
}

// Keys reports keys written through this process's connection and not since
// deleted or flushed. Entries evicted or expired on the server may linger.
func (a *Adapter) Keys(ctx context.Context, prefix string) ([]string, error) {
	c, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	return a.FilterKeys(c.list(""), prefix), nil
}

var _ cachekit.Adapter = (*Adapter)(nil)
