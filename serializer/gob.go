package serializer

import (
	"bytes"
	"encoding/gob"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// Gob is the Go-native serializer. Concrete types survive the round-trip, so
// a stored struct comes back as the same struct type. Values are encoded
// through an interface, so every concrete type other than the builtins and
// the map[string]any / []any registered here must be registered with
// gob.Register by the caller before it is stored or read.
type Gob struct{}

func (Gob) Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Gob) Unserialize(b []byte) (any, error) {
	var v any
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&v)
	return v, err
}
