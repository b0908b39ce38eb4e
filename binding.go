package strata

import (
	"context"
	"reflect"
	"strings"

	"github.com/zoobzio/sentinel"
)

func init() {
	// Register field tags with sentinel
	sentinel.Tag("strata.localize")
	sentinel.Tag("strata.encrypt")
	sentinel.Tag("strata.hash")
	sentinel.Tag("strata.mask")
	sentinel.Tag("strata.redact")
	sentinel.Tag("strata.stamp")
}

// Binding maps a Go struct type onto an entity type whose chains are
// declared with struct tags:
//
//	strata.localize:"<fallback locale>"   Localize (value may be empty)
//	strata.encrypt:"<algorithm>"          Encrypt (empty means aes-256-gcm)
//	strata.hash:"<algorithm>"             Hash (empty means sha256)
//	strata.mask:"<mask type>"             Mask on plain output
//	strata.redact:"<replacement>"         Redact on plain output
//	strata.stamp:"create|save"            Stamp on creation, or on every save
//
// Chain transformations are attached in the order localize, encrypt, hash.
// Document field names come from the json tag, else the Go field name.
type Binding[T any] struct {
	typ      *EntityType
	codec    Codec
	typeName string
	fields   []bindingField
}

// bindingField describes how one struct field maps to a document field.
type bindingField struct {
	index []int  // reflect.Value.FieldByIndex access path
	name  string // document field name
}

// BindOption configures Bind.
type BindOption func(*bindConfig)

type bindConfig struct {
	keys       map[EncryptAlgo][]byte
	hashOpts   []HashOption
	encOpts    []EncryptOption
	primaryKey string
	parent     *EntityType
}

// WithKey supplies the secret key for fields encrypted with algo.
func WithKey(algo EncryptAlgo, key []byte) BindOption {
	return func(c *bindConfig) {
		c.keys[algo] = key
	}
}

// WithHashOptions applies opts to every Hash the binding creates.
func WithHashOptions(opts ...HashOption) BindOption {
	return func(c *bindConfig) {
		c.hashOpts = append(c.hashOpts, opts...)
	}
}

// WithEncryptOptions applies opts to every Encrypt the binding creates.
func WithEncryptOptions(opts ...EncryptOption) BindOption {
	return func(c *bindConfig) {
		c.encOpts = append(c.encOpts, opts...)
	}
}

// WithKeyField sets the primary key document field. Defaults to "id".
func WithKeyField(field string) BindOption {
	return func(c *bindConfig) {
		c.primaryKey = field
	}
}

// WithBindParent makes the bound type inherit chains from parent.
func WithBindParent(parent *EntityType) BindOption {
	return func(c *bindConfig) {
		c.parent = parent
	}
}

// Bind defines an entity type named name in reg from the tags of T.
func Bind[T any](reg *Registry, name string, codec Codec, opts ...BindOption) (*Binding[T], error) {
	cfg := &bindConfig{
		keys:       make(map[EncryptAlgo][]byte),
		primaryKey: DefaultPrimaryKey,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	meta := sentinel.Scan[T]()
	rt := reflect.TypeFor[T]()

	typeOpts := []TypeOption{WithPrimaryKey(cfg.primaryKey)}
	if cfg.parent != nil {
		typeOpts = append(typeOpts, WithParent(cfg.parent))
	}
	et, err := reg.Define(name, typeOpts...)
	if err != nil {
		return nil, err
	}

	b := &Binding[T]{typ: et, codec: codec, typeName: meta.TypeName}
	for _, field := range meta.Fields {
		sf := rt.FieldByIndex(field.Index)
		docName := documentName(sf)
		if docName == "" {
			continue
		}
		b.fields = append(b.fields, bindingField{index: field.Index, name: docName})
		et.mu.Lock()
		et.declare(docName)
		et.mu.Unlock()

		if err := attachTagged(et, docName, field.Tags, cfg); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// attachTagged attaches the transformations declared by tags to field.
func attachTagged(et *EntityType, field string, tags map[string]string, cfg *bindConfig) error {
	if val, ok := tags["strata.localize"]; ok {
		if err := et.Attach(field, NewLocalize(WithFallbackLocale(val))); err != nil {
			return err
		}
	}

	if val, ok := tags["strata.encrypt"]; ok {
		algo := EncryptAES256GCM
		if val != "" {
			algo = EncryptAlgo(val)
		}
		if !IsValidEncryptAlgo(algo) {
			return newConfigError(ErrInvalidTag, et.name, field, val)
		}
		key, ok := cfg.keys[algo]
		if !ok {
			return newConfigError(ErrInvalidKey, et.name, field, string(algo))
		}
		enc, err := NewEncrypt(key, append([]EncryptOption{WithEncryptAlgorithm(algo)}, cfg.encOpts...)...)
		if err != nil {
			return err
		}
		if err := et.Attach(field, enc); err != nil {
			return err
		}
	}

	if val, ok := tags["strata.hash"]; ok {
		algo := HashSHA256
		if val != "" {
			algo = HashAlgo(val)
		}
		if !IsValidHashAlgo(algo) {
			return newConfigError(ErrInvalidTag, et.name, field, val)
		}
		h, err := NewHash(append([]HashOption{WithHashAlgorithm(algo)}, cfg.hashOpts...)...)
		if err != nil {
			return err
		}
		if err := et.Attach(field, h); err != nil {
			return err
		}
	}

	if val, ok := tags["strata.mask"]; ok {
		m, err := NewMask(MaskType(val))
		if err != nil {
			return newConfigError(ErrInvalidTag, et.name, field, val)
		}
		if err := et.Attach(field, m); err != nil {
			return err
		}
	}

	if val, ok := tags["strata.redact"]; ok {
		// Redact values are arbitrary strings, no validation needed
		if err := et.Attach(field, NewRedact(val)); err != nil {
			return err
		}
	}

	if val, ok := tags["strata.stamp"]; ok {
		var opts []StampOption
		switch val {
		case "", "create":
		case "save":
			opts = append(opts, WithStampOnSave())
		default:
			return newConfigError(ErrInvalidTag, et.name, field, val)
		}
		if err := et.Attach(field, NewStamp(opts...)); err != nil {
			return err
		}
	}
	return nil
}

// documentName returns the document field name of sf, or "" if skipped.
func documentName(sf reflect.StructField) string {
	if !sf.IsExported() {
		return ""
	}
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return sf.Name
}

// Type returns the bound entity type.
func (b *Binding[T]) Type() *EntityType { return b.typ }

// Codec returns the binding's codec.
func (b *Binding[T]) Codec() Codec { return b.codec }

// Entity materializes v as an entity, locking each non-zero field.
func (b *Binding[T]) Entity(ctx context.Context, v *T) (*Entity, error) {
	rv := reflect.ValueOf(v).Elem()
	plain := make(map[string]any, len(b.fields))
	for _, f := range b.fields {
		fv := rv.FieldByIndex(f.index)
		if fv.IsZero() {
			continue
		}
		plain[f.name] = fv.Interface()
	}
	return b.typ.FromPlain(ctx, plain)
}

// Value decodes the entity's plain values into a T through the codec.
// Lifecycle observers of plain output do not run.
func (b *Binding[T]) Value(_ context.Context, e *Entity) (*T, error) {
	plain, err := e.plainValues()
	if err != nil {
		return nil, err
	}
	return b.decode(plain)
}

// Receive decodes data into a T and materializes it as an entity.
func (b *Binding[T]) Receive(ctx context.Context, data []byte) (*Entity, error) {
	var v T
	if err := b.codec.Unmarshal(data, &v); err != nil {
		return nil, newCodecError(ErrUnmarshal, err)
	}
	return b.Entity(ctx, &v)
}

// Send encodes the entity's plain output, after masking and redaction.
func (b *Binding[T]) Send(ctx context.Context, e *Entity) ([]byte, error) {
	plain, err := e.ToPlain(ctx)
	if err != nil {
		return nil, err
	}
	data, err := b.codec.Marshal(plain)
	if err != nil {
		return nil, newCodecError(ErrMarshal, err)
	}
	return data, nil
}

func (b *Binding[T]) decode(plain map[string]any) (*T, error) {
	data, err := b.codec.Marshal(plain)
	if err != nil {
		return nil, newCodecError(ErrMarshal, err)
	}
	var out T
	if err := b.codec.Unmarshal(data, &out); err != nil {
		return nil, newCodecError(ErrUnmarshal, err)
	}
	return &out, nil
}
