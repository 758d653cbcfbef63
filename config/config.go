// Package config loads adapter definitions from YAML.
//
//	adapters:
//	  sessions:
//	    type: redis
//	    prefix: "app-sess-"
//	    lifetime: 1800
//	    default_serializer: msgpack
//	    host: ${REDIS_HOST}
//	    port: 6379
//	  files:
//	    type: stream
//	    storage_dir: /var/cache/app
//
// ${VAR} references are expanded from the environment before parsing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Adapter types accepted in Type. The weak adapter holds live objects and is
// built in code only.
const (
	TypeMemory       = "memory"
	TypeShm          = "shm"
	TypeMemcached    = "memcached"
	TypeRedis        = "redis"
	TypeRedisCluster = "rediscluster"
	TypeStream       = "stream"
)

var types = []string{TypeMemory, TypeShm, TypeMemcached, TypeRedis, TypeRedisCluster, TypeStream}

// File is a configuration document.
type File struct {
	Adapters map[string]Adapter `yaml:"adapters"`
}

// Adapter describes one adapter. Fields that do not apply to Type are ignored.
type Adapter struct {
	Type string `yaml:"type"`

	// Common
	Prefix            *string `yaml:"prefix,omitempty"`
	Lifetime          int64   `yaml:"lifetime,omitempty"`
	DefaultSerializer string  `yaml:"default_serializer,omitempty"`
	MaxDecodeBytes    int     `yaml:"max_decode_bytes,omitempty"`

	// redis
	Host         string        `yaml:"host,omitempty"`
	Port         int           `yaml:"port,omitempty"`
	Index        int           `yaml:"index,omitempty"`
	Socket       string        `yaml:"socket,omitempty"`
	Persistent   bool          `yaml:"persistent,omitempty"`
	Username     string        `yaml:"username,omitempty"`
	Password     string        `yaml:"password,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`

	// redis, rediscluster, memcached
	Timeout     time.Duration `yaml:"timeout,omitempty"` // connect / operation timeout
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`

	// rediscluster
	Name  string   `yaml:"name,omitempty"`
	Hosts []string `yaml:"hosts,omitempty"`
	TLS   bool     `yaml:"tls,omitempty"`

	// memcached
	Servers      []Server `yaml:"servers,omitempty"`
	PersistentID string   `yaml:"persistent_id,omitempty"`
	MaxIdleConns int      `yaml:"max_idle_conns,omitempty"`

	// stream
	StorageDir string `yaml:"storage_dir,omitempty"`

	// shm: a dedicated segment instead of the process-wide one
	Segment *Segment `yaml:"segment,omitempty"`
}

type Server struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port,omitempty"`
	Weight int    `yaml:"weight,omitempty"`
}

type Segment struct {
	Shards             int `yaml:"shards,omitempty"`
	MaxEntrySize       int `yaml:"max_entry_size,omitempty"`
	HardMaxCacheSizeMB int `yaml:"hard_max_cache_size_mb,omitempty"`
}

var ErrUnknownAdapter = errors.New("config: unknown adapter")

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a document, rejecting unknown fields and adapter types.
func Parse(r io.Reader) (*File, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(raw)))))
	dec.KnownFields(true)
	var out File
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for name, a := range out.Adapters {
		if !slices.Contains(types, a.Type) {
			return nil, fmt.Errorf("config: adapter %q: unsupported type %q", name, a.Type)
		}
	}
	return &out, nil
}

// Adapter returns the named definition.
func (f *File) Adapter(name string) (Adapter, error) {
	a, ok := f.Adapters[name]
	if !ok {
		return Adapter{}, fmt.Errorf("%w: %q", ErrUnknownAdapter, name)
	}
	return a, nil
}

// Names lists the defined adapters, sorted.
func (f *File) Names() []string {
	out := make([]string, 0, len(f.Adapters))
	for n := range f.Adapters {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
