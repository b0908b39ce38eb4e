package strata

import (
	"context"
	"fmt"
	"sort"
)

// MetaKey is the reserved document key holding persisted metadata cells.
const MetaKey = "_meta"

// Document is a stored representation of an entity: field name to locked value.
type Document map[string]any

// Entity is one instance of an EntityType.
//
// Stored values always hold the fully locked form of each field. Plain values
// are produced on read by the pipeline. An Entity is not safe for concurrent
// mutation; callers serialize access to a single instance.
type Entity struct {
	typ      *EntityType
	stored   map[string]any
	cells    map[string]map[string]any
	bound    map[string]map[string][]any
	floating map[string]any
}

// New creates an empty instance of the type, freezing its chains.
func (t *EntityType) New() *Entity {
	t.Freeze()
	return &Entity{
		typ:      t,
		stored:   make(map[string]any),
		cells:    make(map[string]map[string]any),
		bound:    make(map[string]map[string][]any),
		floating: make(map[string]any),
	}
}

// FromStorage materializes an entity from a stored document and fires
// EventFromStorage. No unlock runs; fields are unlocked lazily on read.
func (t *EntityType) FromStorage(ctx context.Context, doc Document) (*Entity, error) {
	e := t.New()
	for k, v := range doc {
		if k == MetaKey {
			if err := e.loadCells(v); err != nil {
				return nil, err
			}
			continue
		}
		if v != nil {
			e.stored[k] = v
		}
	}
	if err := e.Trigger(EventFromStorage); err != nil {
		emitEntityMaterialized(ctx, t.name, "storage", len(e.stored), err)
		return nil, err
	}
	emitEntityMaterialized(ctx, t.name, "storage", len(e.stored), nil)
	return e, nil
}

// FromPlain materializes an entity from plain values, locking each through
// its chain, and fires EventFromPlain. Fields are set in name order.
func (t *EntityType) FromPlain(ctx context.Context, plain map[string]any) (*Entity, error) {
	e := t.New()
	err := e.SetPlain(plain)
	if err == nil {
		err = e.Trigger(EventFromPlain)
	}
	emitEntityMaterialized(ctx, t.name, "plain", len(plain), err)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// SetPlain sets each value through its field's chain, in field name order.
// It stops at the first error.
func (e *Entity) SetPlain(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := e.Set(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// ToStorage fires EventToStorage and returns the stored document. Metadata
// cells are included under MetaKey. Floating values are not part of the document.
func (e *Entity) ToStorage(ctx context.Context) (Document, error) {
	if err := e.Trigger(EventToStorage); err != nil {
		emitEntitySerialized(ctx, e.typ.name, "storage", 0, err)
		return nil, err
	}
	doc := make(Document, len(e.stored)+1)
	for k, v := range e.stored {
		doc[k] = v
	}
	if meta := e.dumpCells(); meta != nil {
		doc[MetaKey] = meta
	}
	emitEntitySerialized(ctx, e.typ.name, "storage", len(e.stored), nil)
	return doc, nil
}

// ToPlain reads every field through its chain and fires EventToPlain with
// the output map, letting observers rewrite it. Fields that yield no value
// are omitted.
func (e *Entity) ToPlain(ctx context.Context) (map[string]any, error) {
	out, err := e.plainValues()
	if err != nil {
		emitEntitySerialized(ctx, e.typ.name, "plain", 0, err)
		return nil, err
	}
	if err := e.Trigger(EventToPlain, out); err != nil {
		emitEntitySerialized(ctx, e.typ.name, "plain", 0, err)
		return nil, err
	}
	emitEntitySerialized(ctx, e.typ.name, "plain", len(out), nil)
	return out, nil
}

func (e *Entity) plainValues() (map[string]any, error) {
	out := make(map[string]any)
	for _, f := range e.Fields() {
		v, ok, err := e.Lookup(f)
		if err != nil {
			return nil, err
		}
		if ok && v != nil {
			out[f] = v
		}
	}
	return out, nil
}

// Type returns the entity's type.
func (e *Entity) Type() *EntityType {
	return e.typ
}

// Fields returns the type's fields followed by any undeclared fields the
// instance holds, sorted.
func (e *Entity) Fields() []string {
	fields := e.typ.Fields()
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f] = true
	}
	var extra []string
	for _, m := range []map[string]any{e.stored, e.floating} {
		for f := range m {
			if !seen[f] {
				seen[f] = true
				extra = append(extra, f)
			}
		}
	}
	sort.Strings(extra)
	return append(fields, extra...)
}

// Stored returns the raw locked value of field.
func (e *Entity) Stored(field string) any {
	return e.stored[field]
}

// Floating returns the plain value held for field while its chain cannot run.
func (e *Entity) Floating(field string) (any, bool) {
	v, ok := e.floating[field]
	return v, ok
}

// Key returns the primary key value as a string, or "" if unset.
func (e *Entity) Key() string {
	v, ok := e.stored[e.typ.primaryKey]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// setKey writes the primary key directly into storage.
func (e *Entity) setKey(key string) {
	e.stored[e.typ.primaryKey] = key
}

// Cell returns the metadata cell content of transformation id on field.
func (e *Entity) Cell(field, id string) any {
	return e.cells[field][id]
}

// Bound returns the arguments bound to transformation id on field.
func (e *Entity) Bound(field, id string) ([]any, bool) {
	args, ok := e.bound[field][id]
	return args, ok
}

func (e *Entity) dumpCells() map[string]any {
	var meta map[string]any
	for field, cells := range e.cells {
		fm := make(map[string]any)
		for id, v := range cells {
			if v != nil {
				fm[id] = v
			}
		}
		if len(fm) == 0 {
			continue
		}
		if meta == nil {
			meta = make(map[string]any)
		}
		meta[field] = fm
	}
	return meta
}

func (e *Entity) loadCells(v any) error {
	fields, ok := asStringMap(v)
	if !ok {
		return newCodecError(ErrUnmarshal, fmt.Errorf("%s is %T, want object", MetaKey, v))
	}
	for field, raw := range fields {
		cells, ok := asStringMap(raw)
		if !ok {
			return newCodecError(ErrUnmarshal, fmt.Errorf("%s.%s is %T, want object", MetaKey, field, raw))
		}
		for id, cell := range cells {
			if e.cells[field] == nil {
				e.cells[field] = make(map[string]any)
			}
			e.cells[field][id] = cell
		}
	}
	return nil
}
