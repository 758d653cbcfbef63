// Package redis is the cache adapter for a single Redis server.
//
// The key prefix and, for the gob, json, cbor and msgpack serializers, value
// serialization are handled by the client layer; the adapter passes logical
// keys through unchanged. Clear flushes the whole selected database.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/internal/pool"
	"github.com/unkn0wn-root/cachekit/internal/rediskv"
)

const (
	Name          = "redis"
	DefaultPrefix = "ph-reds-"
	DefaultHost   = "127.0.0.1"
	DefaultPort   = 6379
)

// Options configure the adapter. Zero values pick the defaults.
type Options struct {
	cachekit.Options

	Host  string // default DefaultHost
	Port  int    // default DefaultPort
	Index int    // database number
	// Socket is a unix socket path; it takes precedence over Host/Port.
	Socket string
	// Persistent shares one client between adapters with the same target.
	Persistent bool

	Username string
	Password string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// Client is a pre-built client. The adapter never closes it.
	Client goredis.UniversalClient
}

var clients pool.Registry[*goredis.Client]

// Adapter stores entries in one Redis database.
type Adapter struct {
	*rediskv.Store
	opts Options
}

func New(opts Options) (*Adapter, error) {
	if opts.Index < 0 {
		return nil, &cachekit.ConfigError{Adapter: Name, Option: "Index", Err: errors.New("must not be negative")}
	}
	if opts.Port < 0 || opts.Port > 65535 {
		return nil, &cachekit.ConfigError{Adapter: Name, Option: "Port", Err: fmt.Errorf("out of range: %d", opts.Port)}
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	b := cachekit.NewBase(cachekit.BaseConfig{
		Name:              Name,
		Prefix:            DefaultPrefix,
		DefaultSerializer: cachekit.DefaultSerializerName,
	}, opts.Options)
	a := &Adapter{opts: opts}
	a.Store = rediskv.NewStore(b, a.dial)
	return a, nil
}

// Client returns the underlying go-redis client, connecting on first use.
func (a *Adapter) Client(ctx context.Context) (goredis.UniversalClient, error) {
	c, err := a.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return c.Client(), nil
}

func (a *Adapter) target() (network, addr string) {
	if a.opts.Socket != "" {
		return "unix", a.opts.Socket
	}
	return "tcp", net.JoinHostPort(a.opts.Host, strconv.Itoa(a.opts.Port))
}

func (a *Adapter) dial(ctx context.Context) (goredis.UniversalClient, bool, error) {
	if a.opts.Client != nil {
		if err := a.opts.Client.Ping(ctx).Err(); err != nil {
			return nil, false, a.ConnectFailed("client", err)
		}
		return a.opts.Client, false, nil
	}
	network, addr := a.target()
	create := func() (*goredis.Client, error) {
		rdb := goredis.NewClient(&goredis.Options{
			Network:      network,
			Addr:         addr,
			DB:           a.opts.Index,
			Username:     a.opts.Username,
			Password:     a.opts.Password,
			DialTimeout:  a.opts.ConnectTimeout,
			ReadTimeout:  a.opts.ReadTimeout,
			WriteTimeout: a.opts.WriteTimeout,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return rdb, nil
	}
	target := fmt.Sprintf("%s/%d", addr, a.opts.Index)
	if !a.opts.Persistent {
		rdb, err := create()
		if err != nil {
			return nil, false, a.ConnectFailed(target, err)
		}
		return rdb, true, nil
	}
	rdb, err := clients.Get(network+"://"+target, create)
	if err != nil {
		return nil, false, a.ConnectFailed(target, err)
	}
	return rdb, false, nil
}

var _ cachekit.Adapter = (*Adapter)(nil)
