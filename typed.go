package strata

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// typeTag records what JSON alone cannot: dates, byte slices, Go number
// kinds and container types, recursively through arrays and objects. It
// carries no values. For arrays and objects K holds the Go spelling of a
// typed container such as []string or map[string]int.
type typeTag struct {
	T string              `json:"t"`
	K string              `json:"k,omitempty"`
	E []*typeTag          `json:"e,omitempty"`
	F map[string]*typeTag `json:"f,omitempty"`
}

const (
	tagDate   = "date"
	tagBytes  = "bytes"
	tagNumber = "number"
	tagArray  = "array"
	tagObject = "object"
)

var numberKinds = map[string]reflect.Type{
	"int":     reflect.TypeFor[int](),
	"int8":    reflect.TypeFor[int8](),
	"int16":   reflect.TypeFor[int16](),
	"int32":   reflect.TypeFor[int32](),
	"int64":   reflect.TypeFor[int64](),
	"uint":    reflect.TypeFor[uint](),
	"uint8":   reflect.TypeFor[uint8](),
	"uint16":  reflect.TypeFor[uint16](),
	"uint32":  reflect.TypeFor[uint32](),
	"uint64":  reflect.TypeFor[uint64](),
	"float32": reflect.TypeFor[float32](),
}

// elementTypes are the leaf types a container spelling may name.
var elementTypes = map[string]reflect.Type{
	"bool":         reflect.TypeFor[bool](),
	"string":       reflect.TypeFor[string](),
	"float64":      reflect.TypeFor[float64](),
	"interface {}": reflect.TypeFor[any](),
	"time.Time":    reflect.TypeFor[time.Time](),
}

func init() {
	for name, typ := range numberKinds {
		elementTypes[name] = typ
	}
}

var (
	anySlice = reflect.TypeFor[[]any]()
	anyMap   = reflect.TypeFor[map[string]any]()
)

// encodeTyped serializes v to JSON and returns the type metadata needed to
// restore it, as JSON, or "" when plain JSON decoding already restores it.
// Structs are encoded through their JSON form and come back as maps.
func encodeTyped(v any) ([]byte, string, error) {
	norm, tag, err := normalize(reflect.ValueOf(v))
	if err != nil {
		return nil, "", err
	}
	data, err := json.Marshal(norm)
	if err != nil {
		return nil, "", err
	}
	if tag == nil {
		return data, "", nil
	}
	meta, err := json.Marshal(tag)
	if err != nil {
		return nil, "", err
	}
	return data, string(meta), nil
}

// decodeTyped reverses encodeTyped.
func decodeTyped(data []byte, meta string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	var tag *typeTag
	if meta != "" {
		tag = &typeTag{}
		if err := json.Unmarshal([]byte(meta), tag); err != nil {
			return nil, fmt.Errorf("type metadata: %w", err)
		}
	}
	return restore(raw, tag)
}

func normalize(rv reflect.Value) (any, *typeTag, error) {
	if !rv.IsValid() {
		return nil, nil, nil
	}
	if t, ok := rv.Interface().(time.Time); ok {
		return t.Format(time.RFC3339Nano), &typeTag{T: tagDate}, nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil, nil
		}
		return normalize(rv.Elem())
	case reflect.String:
		return rv.String(), nil, nil
	case reflect.Bool:
		return rv.Bool(), nil, nil
	case reflect.Float64:
		return rv.Float(), nil, nil
	case reflect.Float32:
		return rv.Float(), &typeTag{T: tagNumber, K: "float32"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), &typeTag{T: tagNumber, K: rv.Kind().String()}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), &typeTag{T: tagNumber, K: rv.Kind().String()}, nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(rv.Bytes()), &typeTag{T: tagBytes}, nil
		}
		name, typed := containerName(rv.Type())
		typed = typed && rv.Type() != anySlice
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			if typed {
				return nil, &typeTag{T: tagArray, K: name}, nil
			}
			return nil, nil, nil
		}
		out := make([]any, rv.Len())
		elems := make([]*typeTag, rv.Len())
		tagged := false
		for i := 0; i < rv.Len(); i++ {
			v, t, err := normalize(rv.Index(i))
			if err != nil {
				return nil, nil, err
			}
			out[i], elems[i] = v, t
			tagged = tagged || t != nil
		}
		if !tagged && !typed {
			return out, nil, nil
		}
		tag := &typeTag{T: tagArray}
		if typed {
			tag.K = name
		}
		if tagged {
			tag.E = elems
		}
		return out, tag, nil
	case reflect.Map:
		name, typed := containerName(rv.Type())
		typed = typed && rv.Type() != anyMap
		if rv.IsNil() {
			if typed {
				return nil, &typeTag{T: tagObject, K: name}, nil
			}
			return nil, nil, nil
		}
		out := make(map[string]any, rv.Len())
		fields := make(map[string]*typeTag)
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			v, t, err := normalize(iter.Value())
			if err != nil {
				return nil, nil, err
			}
			out[key] = v
			if t != nil {
				fields[key] = t
			}
		}
		if len(fields) == 0 && !typed {
			return out, nil, nil
		}
		tag := &typeTag{T: tagObject}
		if typed {
			tag.K = name
		}
		if len(fields) > 0 {
			tag.F = fields
		}
		return out, tag, nil
	case reflect.Struct:
		data, err := json.Marshal(rv.Interface())
		if err != nil {
			return nil, nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	}
	return nil, nil, fmt.Errorf("cannot encode %s", rv.Type())
}

func restore(raw any, tag *typeTag) (any, error) {
	if tag == nil {
		return plainJSON(raw)
	}
	switch tag.T {
	case tagDate:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("date is %T", raw)
		}
		return time.Parse(time.RFC3339Nano, s)
	case tagBytes:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("bytes is %T", raw)
		}
		return base64.StdEncoding.DecodeString(s)
	case tagNumber:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("number is %T", raw)
		}
		return restoreNumber(n, tag.K)
	case tagArray, tagObject:
		var typ reflect.Type
		if tag.K != "" {
			t, err := parseType(tag.K)
			if err != nil {
				return nil, err
			}
			typ = t
			if raw == nil {
				return reflect.Zero(typ).Interface(), nil
			}
		}
		if tag.T == tagArray {
			return restoreArray(raw, tag, typ)
		}
		return restoreObject(raw, tag, typ)
	}
	return nil, fmt.Errorf("unknown type tag %q", tag.T)
}

func restoreArray(raw any, tag *typeTag, typ reflect.Type) (any, error) {
	arr, ok := raw.([]any)
	if !ok || (tag.E != nil && len(arr) != len(tag.E)) {
		return nil, fmt.Errorf("array shape mismatch")
	}
	out := make([]any, len(arr))
	for i := range arr {
		var et *typeTag
		if tag.E != nil {
			et = tag.E[i]
		}
		v, err := restore(arr[i], et)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	if typ == nil {
		return out, nil
	}

	var dst reflect.Value
	if typ.Kind() == reflect.Array {
		if typ.Len() != len(out) {
			return nil, fmt.Errorf("array of %d for %s", len(out), typ)
		}
		dst = reflect.New(typ).Elem()
	} else {
		dst = reflect.MakeSlice(typ, len(out), len(out))
	}
	for i, v := range out {
		if err := assign(dst.Index(i), v); err != nil {
			return nil, err
		}
	}
	return dst.Interface(), nil
}

func restoreObject(raw any, tag *typeTag, typ reflect.Type) (any, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("object is %T", raw)
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		r, err := restore(v, tag.F[k])
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	if typ == nil {
		return out, nil
	}

	dst := reflect.MakeMapWithSize(typ, len(out))
	for k, v := range out {
		key, err := parseKey(k, typ.Key())
		if err != nil {
			return nil, err
		}
		elem := reflect.New(typ.Elem()).Elem()
		if err := assign(elem, v); err != nil {
			return nil, err
		}
		dst.SetMapIndex(key, elem)
	}
	return dst.Interface(), nil
}

// assign stores v in dst. A nil v leaves dst at its zero value.
func assign(dst reflect.Value, v any) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(dst.Type()):
		dst.Set(rv)
	case isNumberKind(rv.Kind()) && isNumberKind(dst.Kind()):
		dst.Set(rv.Convert(dst.Type()))
	default:
		return fmt.Errorf("cannot restore %T as %s", v, dst.Type())
	}
	return nil
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// containerName returns the Go spelling of t when it is an unnamed slice,
// array or map built from predeclared types and time.Time. Map keys must be
// strings, integers or bools so they can be parsed back.
func containerName(t reflect.Type) (string, bool) {
	if t.Name() != "" {
		if typ, ok := elementTypes[t.String()]; ok && typ == t {
			return t.String(), true
		}
		return "", false
	}
	switch t.Kind() {
	case reflect.Slice:
		elem, ok := containerName(t.Elem())
		return "[]" + elem, ok
	case reflect.Array:
		elem, ok := containerName(t.Elem())
		return fmt.Sprintf("[%d]%s", t.Len(), elem), ok
	case reflect.Map:
		switch t.Key().Kind() {
		case reflect.String, reflect.Bool,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		default:
			return "", false
		}
		key, ok := containerName(t.Key())
		if !ok {
			return "", false
		}
		elem, ok := containerName(t.Elem())
		return "map[" + key + "]" + elem, ok
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "interface {}", true
		}
	}
	return "", false
}

// parseType reverses containerName.
func parseType(name string) (reflect.Type, error) {
	switch {
	case strings.HasPrefix(name, "[]"):
		elem, err := parseType(name[2:])
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case strings.HasPrefix(name, "map["):
		end := strings.IndexByte(name, ']')
		if end < 0 {
			break
		}
		key, err := parseType(name[4:end])
		if err != nil {
			return nil, err
		}
		if !key.Comparable() {
			break
		}
		elem, err := parseType(name[end+1:])
		if err != nil {
			return nil, err
		}
		return reflect.MapOf(key, elem), nil
	case strings.HasPrefix(name, "["):
		end := strings.IndexByte(name, ']')
		if end < 0 {
			break
		}
		n, err := strconv.Atoi(name[1:end])
		if err != nil || n < 0 {
			break
		}
		elem, err := parseType(name[end+1:])
		if err != nil {
			return nil, err
		}
		return reflect.ArrayOf(n, elem), nil
	default:
		if typ, ok := elementTypes[name]; ok {
			return typ, nil
		}
	}
	return nil, fmt.Errorf("unknown container type %q", name)
}

// parseKey converts a map key written with fmt.Sprint back to typ.
func parseKey(s string, typ reflect.Type) (reflect.Value, error) {
	key := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.String:
		key.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		key.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		key.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(s, 10, typ.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		key.SetUint(u)
	default:
		return reflect.Value{}, fmt.Errorf("unsupported map key %s", typ)
	}
	return key, nil
}

// plainJSON converts json.Number leaves back to float64, matching a
// decode without UseNumber.
func plainJSON(raw any) (any, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.Float64()
	case []any:
		for i := range v {
			r, err := plainJSON(v[i])
			if err != nil {
				return nil, err
			}
			v[i] = r
		}
		return v, nil
	case map[string]any:
		for k := range v {
			r, err := plainJSON(v[k])
			if err != nil {
				return nil, err
			}
			v[k] = r
		}
		return v, nil
	}
	return raw, nil
}

func restoreNumber(n json.Number, kind string) (any, error) {
	typ, ok := numberKinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown number kind %q", kind)
	}
	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(n.String(), 10, typ.Bits())
		if err != nil {
			return nil, err
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(n.String(), 10, typ.Bits())
		if err != nil {
			return nil, err
		}
		out.SetUint(u)
	default:
		f, err := strconv.ParseFloat(n.String(), typ.Bits())
		if err != nil {
			return nil, err
		}
		out.SetFloat(f)
	}
	return out.Interface(), nil
}

// valueEqual compares plain values like reflect.DeepEqual, except that
// times are equal when they denote the same instant.
func valueEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !ra.IsValid() || !rb.IsValid() || ra.Type() != rb.Type() {
		return reflect.DeepEqual(a, b)
	}
	switch ra.Kind() {
	case reflect.Slice, reflect.Array:
		if ra.Len() != rb.Len() {
			return false
		}
		for i := 0; i < ra.Len(); i++ {
			if !valueEqual(ra.Index(i).Interface(), rb.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		if ra.Len() != rb.Len() {
			return false
		}
		iter := ra.MapRange()
		for iter.Next() {
			bv := rb.MapIndex(iter.Key())
			if !bv.IsValid() || !valueEqual(iter.Value().Interface(), bv.Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// asStringMap views any map with string keys as map[string]any.
// Documents decoded by different codecs use different map types.
func asStringMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.Interface {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				k, ok := iter.Key().Interface().(string)
				if !ok {
					return nil, false
				}
				out[k] = iter.Value().Interface()
			}
			return out, true
		}
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// asSlice views any slice or array as []any.
func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
