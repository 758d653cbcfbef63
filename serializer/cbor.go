package serializer

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBOR is a compact binary serializer backed by fxamacker/cbor.
// The zero value is NOT ready to use. Construct with NewCBOR or MustCBOR.
//
// Use deterministic=true for canonical encoding (RFC 8949 Core Deterministic)
// when byte-for-byte stable outputs matter. Maps decode as map[string]any so
// values look the same as after a JSON or msgpack round-trip.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Serializer = CBOR{}

func NewCBOR(deterministic bool) (CBOR, error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR{}, err
	}
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return CBOR{}, err
	}
	return CBOR{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error.
func MustCBOR(deterministic bool) CBOR {
	c, err := NewCBOR(deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR) Serialize(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c CBOR) Unserialize(b []byte) (any, error) {
	var v any
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
