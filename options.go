package cachekit

import "github.com/unkn0wn-root/cachekit/serializer"

// Options are shared by every adapter. Zero values pick the defaults.
type Options struct {
	// DefaultSerializer names the serializer ("json", "msgpack", "cbor",
	// "gob", "protobuf", "none"; aliases "php" and "igbinary"). Empty picks
	// the adapter default; use NoSerializer to disable serialization.
	DefaultSerializer string
	// Lifetime is the default TTL in seconds; 0 => DefaultLifetime.
	Lifetime int64
	// Serializer is a pre-built instance that bypasses the factory.
	Serializer serializer.Serializer
	// SerializerFactory resolves DefaultSerializer; nil => serializer.Default().
	SerializerFactory *serializer.Factory
	// Prefix overrides the adapter's default key prefix. A pointer so that
	// an empty prefix can be requested.
	Prefix *string
	// MaxDecodeBytes rejects stored payloads above this size on read (0 = off).
	MaxDecodeBytes int

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

// NoSerializer is the DefaultSerializer value that disables generic
// serialization. Backends that can serialize natively switch to it after
// taking over.
const NoSerializer = "-"

// Prefix returns a pointer to p for Options.Prefix.
func Prefix(p string) *string { return &p }
