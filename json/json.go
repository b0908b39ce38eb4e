// Package json provides a JSON codec implementation.
//
// Documents decoded into a strata.Document or map[string]any keep integer
// values as int64 instead of collapsing every number to float64.
package json

import (
	"bytes"
	"encoding/json"

	"github.com/zoobzio/strata"
)

// jsonCodec implements strata.Codec for JSON.
type jsonCodec struct{}

// New returns a JSON codec.
func New() strata.Codec {
	return &jsonCodec{}
}

// ContentType returns the MIME type for JSON.
func (c *jsonCodec) ContentType() string {
	return "application/json"
}

// Marshal encodes v as JSON.
func (c *jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON data into v.
func (c *jsonCodec) Unmarshal(data []byte, v any) error {
	switch target := v.(type) {
	case *strata.Document:
		m, err := decodeMap(data)
		if err != nil {
			return err
		}
		*target = m
		return nil
	case *map[string]any:
		m, err := decodeMap(data)
		if err != nil {
			return err
		}
		*target = m
		return nil
	}
	return json.Unmarshal(data, v)
}

func decodeMap(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	return numbers(m).(map[string]any), nil
}

// numbers replaces json.Number leaves with int64 when integral, else float64.
func numbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = numbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = numbers(e)
		}
		return x
	}
	return v
}
