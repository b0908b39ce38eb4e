// Package yaml provides a YAML codec implementation.
//
// Documents are written with two-space indentation. Decoded documents only
// hold string-keyed maps, so mappings with integer or boolean keys come
// back keyed by their string form.
package yaml

import (
	"bytes"
	"fmt"

	"github.com/zoobzio/strata"
	"gopkg.in/yaml.v3"
)

// yamlCodec implements strata.Codec for YAML.
type yamlCodec struct{}

// New returns a YAML codec.
func New() strata.Codec {
	return &yamlCodec{}
}

// ContentType returns the MIME type for YAML.
func (c *yamlCodec) ContentType() string {
	return "application/yaml"
}

// Marshal encodes v as YAML.
func (c *yamlCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes YAML data into v.
func (c *yamlCodec) Unmarshal(data []byte, v any) error {
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
	return yaml.Unmarshal(data, v)
}

func decodeMap(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return stringKeys(raw).(map[string]any), nil
}

func stringKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = stringKeys(e)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = stringKeys(e)
		}
		return out
	case []any:
		for i, e := range x {
			x[i] = stringKeys(e)
		}
		return x
	}
	return v
}
