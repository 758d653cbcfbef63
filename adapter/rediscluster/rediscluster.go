// Package rediscluster is the cache adapter for Redis Cluster.
//
// It shares its behaviour with the single-server adapter: client-side key
// prefix, native serializer offload, INCRBY counters. Keys and Clear visit
// every master; Clear flushes all of them.
package rediscluster

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/internal/pool"
	"github.com/unkn0wn-root/cachekit/internal/rediskv"
)

const (
	Name          = "rediscluster"
	DefaultPrefix = "ph-redc-"
)

// Options configure the adapter. Hosts (or Client) is required.
type Options struct {
	cachekit.Options

	// Name identifies the cluster; with Persistent it keys the shared client.
	Name string
	// Hosts are seed nodes as host:port.
	Hosts []string

	Timeout     time.Duration // dial timeout
	ReadTimeout time.Duration
	// Persistent shares one client between adapters with the same Name.
	Persistent bool

	Username string
	Password string
	// TLS enables TLS towards every node.
	TLS *tls.Config

	// Client is a pre-built cluster client. The adapter never closes it.
	Client *goredis.ClusterClient
}

var clients pool.Registry[*goredis.ClusterClient]

type Adapter struct {
	*rediskv.Store
	opts Options
}

func New(opts Options) (*Adapter, error) {
	if opts.Client == nil && len(opts.Hosts) == 0 {
		return nil, &cachekit.ConfigError{Adapter: Name, Option: "Hosts", Err: cachekit.ErrMissingOption}
	}
	for _, h := range opts.Hosts {
		if strings.TrimSpace(h) == "" {
			return nil, &cachekit.ConfigError{Adapter: Name, Option: "Hosts", Err: errors.New("empty host")}
		}
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

// Client returns the cluster client, connecting on first use.
func (a *Adapter) Client(ctx context.Context) (*goredis.ClusterClient, error) {
	c, err := a.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return c.Client().(*goredis.ClusterClient), nil
}

func (a *Adapter) poolID() string {
	if a.opts.Name != "" {
		return a.opts.Name
	}
	return strings.Join(a.opts.Hosts, ",")
}

func (a *Adapter) dial(ctx context.Context) (goredis.UniversalClient, bool, error) {
	if a.opts.Client != nil {
		if err := a.opts.Client.Ping(ctx).Err(); err != nil {
			return nil, false, a.ConnectFailed("client", err)
		}
		return a.opts.Client, false, nil
	}
	create := func() (*goredis.ClusterClient, error) {
		cc := goredis.NewClusterClient(&goredis.ClusterOptions{
			Addrs:       a.opts.Hosts,
			Username:    a.opts.Username,
			Password:    a.opts.Password,
			DialTimeout: a.opts.Timeout,
			ReadTimeout: a.opts.ReadTimeout,
			TLSConfig:   a.opts.TLS,
		})
		if err := cc.Ping(ctx).Err(); err != nil {
			_ = cc.Close()
			return nil, err
		}
		return cc, nil
	}
	target := strings.Join(a.opts.Hosts, ",")
	if !a.opts.Persistent {
		cc, err := create()
		if err != nil {
			return nil, false, a.ConnectFailed(target, err)
		}
		return cc, true, nil
	}
	cc, err := clients.Get(a.poolID(), create)
	if err != nil {
		return nil, false, a.ConnectFailed(target, err)
	}
	return cc, false, nil
}

var _ cachekit.Adapter = (*Adapter)(nil)
