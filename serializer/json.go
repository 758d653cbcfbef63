package serializer

import "encoding/json"

// JSON encodes with encoding/json. Numbers decode as float64, objects as
// map[string]any.
type JSON struct{}

func (JSON) Serialize(v any) ([]byte, error) { return json.Marshal(v) }
func (JSON) Unserialize(b []byte) (any, error) {
	var v any
	err := json.Unmarshal(b, &v)
	return v, err
}
