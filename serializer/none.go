package serializer

import (
	"fmt"
	"strconv"
)

// None stores scalars as their plain text form and decodes everything as a
// string. Structured values are rejected.
type None struct{}

func (None) Serialize(v any) ([]byte, error) { return Raw(v) }
func (None) Unserialize(b []byte) (any, error) {
	return string(b), nil
}

// Raw converts a scalar to the bytes a backend without serialization would
// store.
func Raw(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case bool:
		if x {
			return []byte("1"), nil
		}
		return []byte{}, nil
	case int:
		return strconv.AppendInt(nil, int64(x), 10), nil
	case int8:
		return strconv.AppendInt(nil, int64(x), 10), nil
	case int16:
		return strconv.AppendInt(nil, int64(x), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(x), 10), nil
	case int64:
		return strconv.AppendInt(nil, x, 10), nil
	case uint:
		return strconv.AppendUint(nil, uint64(x), 10), nil
	case uint8:
		return strconv.AppendUint(nil, uint64(x), 10), nil
	case uint16:
		return strconv.AppendUint(nil, uint64(x), 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(x), 10), nil
	case uint64:
		return strconv.AppendUint(nil, x, 10), nil
	case float32:
		return strconv.AppendFloat(nil, float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, x, 'g', -1, 64), nil
	case fmt.Stringer:
		return []byte(x.String()), nil
	}
	return nil, fmt.Errorf("%w: %T cannot be stored without a serializer", ErrUnsupportedValue, v)
}
