package serializer

import "fmt"

// Limit wraps another serializer to enforce a maximum allowed payload size
// at Unserialize time. Serialize is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized inputs coming from a shared backend.
type Limit struct {
	// Inner is the underlying serializer being wrapped. It must be set.
	Inner Serializer
	// MaxDecode is the maximum permitted length (in bytes) of the incoming
	// payload. Longer payloads fail without invoking Inner.
	MaxDecode int
}

func (l Limit) Serialize(v any) ([]byte, error) { return l.Inner.Serialize(v) }
func (l Limit) Unserialize(b []byte) (any, error) {
	if l.MaxDecode > 0 && len(b) > l.MaxDecode {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(b), l.MaxDecode)
	}
	return l.Inner.Unserialize(b)
}
