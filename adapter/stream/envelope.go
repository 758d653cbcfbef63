package stream

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const foreverTTL = "forever"

// lifetime is the ttl field of an envelope: seconds, or the string "forever".
type lifetime struct {
	seconds int64
	forever bool
}

var _ msgpack.CustomEncoder = lifetime{}
var _ msgpack.CustomDecoder = (*lifetime)(nil)

func (l lifetime) EncodeMsgpack(enc *msgpack.Encoder) error {
	if l.forever {
		return enc.EncodeString(foreverTTL)
	}
	return enc.EncodeInt(l.seconds)
}

func (l *lifetime) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		if x != foreverTTL {
			return fmt.Errorf("stream: bad ttl %q", x)
		}
		*l = lifetime{forever: true}
	case int64:
		*l = lifetime{seconds: x}
	case uint64:
		*l = lifetime{seconds: int64(x)}
	default:
		return fmt.Errorf("stream: bad ttl type %T", v)
	}
	return nil
}

// envelope is the on-disk record of one entry.
type envelope struct {
	Created int64    `msgpack:"created"`
	TTL     lifetime `msgpack:"ttl"`
	Content []byte   `msgpack:"content"`
}

func (e *envelope) expired(now int64) bool {
	if e.TTL.forever {
		return false
	}
	return e.Created+e.TTL.seconds < now
}

func encodeEnvelope(e envelope) ([]byte, error) { return msgpack.Marshal(&e) }

func decodeEnvelope(b []byte) (envelope, error) {
	var e envelope
	err := msgpack.Unmarshal(b, &e)
	return e, err
}
