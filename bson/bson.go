// Package bson provides a BSON codec implementation.
package bson

import (
	"github.com/zoobzio/strata"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// bsonCodec implements strata.Codec for BSON.
type bsonCodec struct{}

// New returns a BSON codec.
func New() strata.Codec {
	return &bsonCodec{}
}

// ContentType returns the MIME type for BSON.
func (c *bsonCodec) ContentType() string {
	return "application/bson"
}

// Marshal encodes v as BSON.
func (c *bsonCodec) Marshal(v any) ([]byte, error) {
	return bson.Marshal(v)
}

// Unmarshal decodes BSON data into v. Documents decoded into a map are
// normalized to plain Go values.
func (c *bsonCodec) Unmarshal(data []byte, v any) error {
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
	return bson.Unmarshal(data, v)
}

func decodeMap(data []byte) (map[string]any, error) {
	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	m, _ := Normalize(raw).(map[string]any)
	return m, nil
}

// Normalize converts driver types in a decoded value to plain Go values:
// documents become map[string]any, arrays []any, datetimes time.Time,
// binaries []byte and object IDs their hex string.
func Normalize(v any) any {
	switch x := v.(type) {
	case primitive.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = Normalize(e.Value)
		}
		return out
	case primitive.M:
		return normalizeMap(x)
	case map[string]any:
		return normalizeMap(x)
	case strata.Document:
		return normalizeMap(x)
	case primitive.A:
		return normalizeSlice(x)
	case []any:
		return normalizeSlice(x)
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.Binary:
		return x.Data
	case primitive.ObjectID:
		return x.Hex()
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = Normalize(v)
	}
	return out
}
