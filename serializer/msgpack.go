package serializer

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack serializes values using vmihailenco/msgpack/v5.
// The zero value is ready to use.
//
// Decoding is loose: integers come back as int64/uint64 and floats as float64,
// so numeric values round-trip without caring about the encoded width.
type Msgpack struct{}

func (Msgpack) Serialize(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack) Unserialize(b []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	return dec.DecodeInterfaceLoose()
}
