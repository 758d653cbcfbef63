// Package factory builds adapters from config definitions.
package factory

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/adapter/memcached"
	"github.com/unkn0wn-root/cachekit/adapter/memory"
	"github.com/unkn0wn-root/cachekit/adapter/redis"
	"github.com/unkn0wn-root/cachekit/adapter/rediscluster"
	"github.com/unkn0wn-root/cachekit/adapter/shm"
	"github.com/unkn0wn-root/cachekit/adapter/stream"
	"github.com/unkn0wn-root/cachekit/config"
)

// New builds the adapter described by cfg. base carries the ambient pieces
// (Logger, Hooks, SerializerFactory); cfg overrides its common fields.
func New(cfg config.Adapter, base cachekit.Options) (cachekit.Adapter, error) {
	opts := base
	if cfg.Prefix != nil {
		opts.Prefix = cfg.Prefix
	}
	if cfg.Lifetime != 0 {
		opts.Lifetime = cfg.Lifetime
	}
	if cfg.DefaultSerializer != "" {
		opts.DefaultSerializer = cfg.DefaultSerializer
	}
	if cfg.MaxDecodeBytes != 0 {
		opts.MaxDecodeBytes = cfg.MaxDecodeBytes
	}

	switch cfg.Type {
	case config.TypeMemory:
		return memory.New(opts), nil

	case config.TypeShm:
		o := shm.Options{Options: opts}
		if s := cfg.Segment; s != nil {
			seg, err := shm.NewSegment(shm.SegmentConfig{
				Shards:             s.Shards,
				MaxEntrySize:       s.MaxEntrySize,
				HardMaxCacheSizeMB: s.HardMaxCacheSizeMB,
			})
			if err != nil {
				return nil, err
			}
			o.Segment = seg
		}
		return shm.New(o)

	case config.TypeMemcached:
		servers := make([]memcached.Server, 0, len(cfg.Servers))
		for _, s := range cfg.Servers {
			servers = append(servers, memcached.Server{Host: s.Host, Port: s.Port, Weight: s.Weight})
		}
		return memcached.New(memcached.Options{
			Options:      opts,
			Servers:      servers,
			Timeout:      cfg.Timeout,
			MaxIdleConns: cfg.MaxIdleConns,
			PersistentID: cfg.PersistentID,
		})

	case config.TypeRedis:
		return redis.New(redis.Options{
			Options:        opts,
			Host:           cfg.Host,
			Port:           cfg.Port,
			Index:          cfg.Index,
			Socket:         cfg.Socket,
			Persistent:     cfg.Persistent,
			Username:       cfg.Username,
			Password:       cfg.Password,
			ConnectTimeout: cfg.Timeout,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
		})

	case config.TypeRedisCluster:
		o := rediscluster.Options{
			Options:     opts,
			Name:        cfg.Name,
			Hosts:       cfg.Hosts,
			Timeout:     cfg.Timeout,
			ReadTimeout: cfg.ReadTimeout,
			Persistent:  cfg.Persistent,
			Username:    cfg.Username,
			Password:    cfg.Password,
		}
		if cfg.TLS {
			o.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return rediscluster.New(o)

	case config.TypeStream:
		return stream.New(stream.Options{Options: opts, StorageDir: cfg.StorageDir})
	}
	return nil, &cachekit.ConfigError{Adapter: cfg.Type, Option: "type", Err: fmt.Errorf("unsupported adapter type %q", cfg.Type)}
}

// Build constructs every adapter in f, keyed by name. Adapters built before a
// failure are closed when they support it.
func Build(f *config.File, base cachekit.Options) (map[string]cachekit.Adapter, error) {
	out := make(map[string]cachekit.Adapter, len(f.Adapters))
	for _, name := range f.Names() {
		a, err := New(f.Adapters[name], base)
		if err != nil {
			for _, built := range out {
				_ = Close(context.Background(), built)
			}
			return nil, fmt.Errorf("adapter %q: %w", name, err)
		}
		out[name] = a
	}
	return out, nil
}

// Close releases the connection held by a. Adapters without one are left
// alone.
func Close(ctx context.Context, a cachekit.Adapter) error {
	if c, ok := a.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}
