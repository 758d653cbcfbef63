// Package serializer converts cache values to and from their stored byte form.
//
// Serializers are selected by Kind. The set of kinds is closed; a Factory maps
// each kind to a constructor and may be extended or overridden with Register.
package serializer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Serializer encodes values for storage and decodes them back.
// Implementations must be safe for concurrent use.
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Unserialize(data []byte) (any, error)
}

// Kind names a serializer implementation.
type Kind string

const (
	KindNone     Kind = "none"
	KindJSON     Kind = "json"
	KindMsgpack  Kind = "msgpack"
	KindCBOR     Kind = "cbor"
	KindGob      Kind = "gob"
	KindProtobuf Kind = "protobuf"
)

// Native reports whether memcached and redis client wrappers apply k
// themselves instead of leaving serialization to the adapter.
func (k Kind) Native() bool {
	switch k {
	case KindGob, KindJSON, KindCBOR, KindMsgpack:
		return true
	}
	return false
}

var (
	ErrUnknownKind      = errors.New("serializer: unknown kind")
	ErrUnsupportedValue = errors.New("serializer: unsupported value")
	ErrPayloadTooLarge  = errors.New("serializer: payload too large")
)

// aliases accepts the names other cache layers use for the equivalent format.
var aliases = map[string]Kind{
	"php":      KindGob,
	"igbinary": KindCBOR,
}

// ParseKind lower-cases name and resolves aliases.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if k, ok := aliases[n]; ok {
		return k, nil
	}
	switch k := Kind(n); k {
	case KindNone, KindJSON, KindMsgpack, KindCBOR, KindGob, KindProtobuf:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Factory builds serializers by kind.
type Factory struct {
	mu    sync.RWMutex
	ctors map[Kind]func() Serializer
}

// NewFactory returns a factory preloaded with every built-in kind.
func NewFactory() *Factory {
	return &Factory{ctors: map[Kind]func() Serializer{
		KindNone:     func() Serializer { return None{} },
		KindJSON:     func() Serializer { return JSON{} },
		KindMsgpack:  func() Serializer { return Msgpack{} },
		KindCBOR:     func() Serializer { return MustCBOR(false) },
		KindGob:      func() Serializer { return Gob{} },
		KindProtobuf: func() Serializer { return Protobuf{} },
	}}
}

// Register replaces the constructor used for k.
func (f *Factory) Register(k Kind, ctor func() Serializer) {
	f.mu.Lock()
	f.ctors[k] = ctor
	f.mu.Unlock()
}

// New returns a serializer for name (case-insensitive, aliases allowed).
func (f *Factory) New(name string) (Serializer, error) {
	k, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	ctor, ok := f.ctors[k]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return ctor(), nil
}

var defaultFactory = NewFactory()

// Default returns the process-wide factory.
func Default() *Factory { return defaultFactory }

// New is shorthand for Default().New(name).
func New(name string) (Serializer, error) { return defaultFactory.New(name) }
