package cachekit

import (
	"fmt"
	"strings"
	"sync"

	"github.com/unkn0wn-root/cachekit/internal/keys"
	"github.com/unkn0wn-root/cachekit/serializer"
)

// Base carries the state and helpers every adapter shares: prefix, lifetime,
// the serializer selection and the logging/hook sinks. Adapters embed it.
// Base is safe for concurrent use and must not be copied after first use.
type Base struct {
	name     string
	prefix   string
	lifetime int64
	log      Logger
	hooks    Hooks

	mu             sync.Mutex
	serializerName string
	serializer     serializer.Serializer
	provided       bool // serializer came from Options.Serializer
	factory        *serializer.Factory
	maxDecode      int
}

// BaseConfig names the adapter-specific defaults for NewBase.
type BaseConfig struct {
	Name              string // adapter name used in logs, hooks and errors
	Prefix            string
	DefaultSerializer string
}

// NewBase resolves opts against the adapter defaults in cfg.
func NewBase(cfg BaseConfig, opts Options) *Base {
	b := &Base{
		name:      cfg.Name,
		prefix:    cfg.Prefix,
		lifetime:  coalesce(opts.Lifetime, DefaultLifetime),
		log:       coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:     coalesce[Hooks](opts.Hooks, NopHooks{}),
		factory:   opts.SerializerFactory,
		maxDecode: opts.MaxDecodeBytes,
	}
	if opts.Prefix != nil {
		b.prefix = *opts.Prefix
	}
	if b.factory == nil {
		b.factory = serializer.Default()
	}
	switch name := coalesce(opts.DefaultSerializer, cfg.DefaultSerializer); name {
	case NoSerializer:
		b.serializerName = ""
	default:
		b.serializerName = strings.ToLower(name)
	}
	if opts.Serializer != nil {
		b.serializer = b.limit(opts.Serializer)
		b.provided = true
	}
	return b
}

func (b *Base) Name() string     { return b.name }
func (b *Base) Prefix() string   { return b.prefix }
func (b *Base) Lifetime() int64  { return b.lifetime }
func (b *Base) Logger() Logger   { return b.log }
func (b *Base) Hooks() Hooks     { return b.hooks }

// Key returns the backend key for a logical key.
func (b *Base) Key(k string) string { return keys.Prefixed(b.prefix, k) }

// FilterKeys keeps the backend keys under Prefix()+sub.
func (b *Base) FilterKeys(all []string, sub string) []string {
	return keys.Filter(all, b.prefix, sub)
}

// TTLSeconds resolves ttl against the adapter lifetime.
func (b *Base) TTLSeconds(ttl TTL) int64 { return ttl.Resolve(b.lifetime) }

// DefaultSerializer returns the configured serializer name; "" means values
// pass through untouched.
func (b *Base) DefaultSerializer() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.serializerName
}

// SetDefaultSerializer switches to name (lower-cased). A factory-built
// serializer is dropped and rebuilt on next use; one passed in
// Options.Serializer is kept.
func (b *Base) SetDefaultSerializer(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.serializerName = strings.ToLower(name)
	if !b.provided {
		b.serializer = nil
	}
}

// InitSerializer builds the serializer for the configured name if it has not
// been built yet. It is a no-op when serialization is disabled.
func (b *Base) InitSerializer() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.serializerLocked()
	return err
}

func (b *Base) serializerLocked() (serializer.Serializer, error) {
	if b.serializerName == "" {
		return nil, nil
	}
	if b.serializer == nil {
		s, err := b.factory.New(b.serializerName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		b.serializer = b.limit(s)
	}
	return b.serializer, nil
}

// Offload hands serialization to a backend client when the configured kind
// is one the client handles natively. The adapter's own serializer name then
// becomes "" and the returned serializer belongs to the client. Otherwise the
// adapter's serializer is initialized and nil is returned.
func (b *Base) Offload(native func(serializer.Kind) bool) (serializer.Serializer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.serializerName != "" && !b.provided {
		if k, err := serializer.ParseKind(b.serializerName); err == nil && native(k) {
			s, err := b.factory.New(string(k))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.name, err)
			}
			b.log.Debug("serializer offloaded to client", b.fields("serializer", string(k)))
			b.serializerName = ""
			b.serializer = nil
			return b.limit(s), nil
		}
	}
	_, err := b.serializerLocked()
	return nil, err
}

func (b *Base) limit(s serializer.Serializer) serializer.Serializer {
	if b.maxDecode > 0 {
		return serializer.Limit{Inner: s, MaxDecode: b.maxDecode}
	}
	return s
}

// Serialize encodes v with the configured serializer. With serialization
// disabled v is returned unchanged for the backend to store as is.
func (b *Base) Serialize(v any) (any, error) {
	b.mu.Lock()
	s, err := b.serializerLocked()
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return v, nil
	}
	return s.Serialize(v)
}

// SerializeBytes is Serialize for backends that only store bytes: with
// serialization disabled scalars are converted to their raw form.
func (b *Base) SerializeBytes(v any) ([]byte, error) {
	out, err := b.Serialize(v)
	if err != nil {
		return nil, err
	}
	if p, ok := out.([]byte); ok {
		return p, nil
	}
	return serializer.Raw(out)
}

// Unserialize decodes content. nil content yields def; with serialization
// disabled content is returned as is. A decode failure is a soft miss: it is
// logged, reported to Hooks and def is returned.
func (b *Base) Unserialize(key string, content any, def any) any {
	if content == nil {
		return def
	}
	b.mu.Lock()
	s, err := b.serializerLocked()
	b.mu.Unlock()
	if err != nil {
		b.Corrupt(key, err)
		return def
	}
	if s == nil {
		return content
	}
	var raw []byte
	switch c := content.(type) {
	case []byte:
		raw = c
	case string:
		raw = []byte(c)
	default:
		return content
	}
	v, err := s.Unserialize(raw)
	if err != nil {
		b.Corrupt(key, err)
		return def
	}
	return v
}

// UnserializeBytes is Unserialize for byte-only backends: with serialization
// disabled the payload is returned as a string.
func (b *Base) UnserializeBytes(key string, content []byte, def any) any {
	if content == nil {
		return def
	}
	if b.DefaultSerializer() == "" {
		return string(content)
	}
	return b.Unserialize(key, content, def)
}

// Corrupt records an unreadable payload for key.
func (b *Base) Corrupt(key string, err error) {
	b.log.Warn("unreadable payload treated as miss", b.fields("key", key, "err", err))
	b.hooks.PayloadCorrupt(b.name, key, err)
}
