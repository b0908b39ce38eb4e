package strata

import (
	"context"
	"time"
)

// Model reads and writes entities of one type through a store collection.
type Model struct {
	typ  *EntityType
	coll Collection
	name string
}

// NewModel binds et to the collection named after it in store.
func NewModel(ctx context.Context, store Store, et *EntityType) (*Model, error) {
	coll, err := store.Collection(ctx, et.Name())
	if err != nil {
		return nil, err
	}
	return &Model{typ: et, coll: coll, name: et.Name()}, nil
}

// Type returns the model's entity type.
func (m *Model) Type() *EntityType { return m.typ }

// Collection returns the underlying collection.
func (m *Model) Collection() Collection { return m.coll }

// Get loads the entity stored under key.
func (m *Model) Get(ctx context.Context, key string) (e *Entity, err error) {
	defer m.track(ctx, "get")(&err)
	doc, err := m.coll.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return m.materialize(ctx, key, doc)
}

// GetBy loads the entities whose index fields equal keys.
func (m *Model) GetBy(ctx context.Context, index string, keys ...any) (es []*Entity, err error) {
	defer m.track(ctx, "get_by")(&err)
	docs, err := m.coll.Find(ctx, index, keys...)
	if err != nil {
		return nil, err
	}
	return m.materializeAll(ctx, docs)
}

// GetAll loads every entity in the collection.
func (m *Model) GetAll(ctx context.Context) (es []*Entity, err error) {
	defer m.track(ctx, "get_all")(&err)
	docs, err := m.coll.Find(ctx, "")
	if err != nil {
		return nil, err
	}
	return m.materializeAll(ctx, docs)
}

// Insert stores e and returns its key. An entity without a primary key
// value is given a generated one.
func (m *Model) Insert(ctx context.Context, e *Entity) (key string, err error) {
	defer m.track(ctx, "insert")(&err)
	return m.insert(ctx, e)
}

// InsertMany stores each entity in order and returns their keys.
func (m *Model) InsertMany(ctx context.Context, es ...*Entity) (keys []string, err error) {
	defer m.track(ctx, "insert_many")(&err)
	keys = make([]string, 0, len(es))
	for _, e := range es {
		key, err := m.insert(ctx, e)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Update merges the stored form of e into the document under key.
func (m *Model) Update(ctx context.Context, key string, e *Entity) (err error) {
	defer m.track(ctx, "update")(&err)
	doc, err := e.ToStorage(ctx)
	if err != nil {
		return err
	}
	return m.coll.Update(ctx, key, doc)
}

// Save writes e back under its own primary key.
func (m *Model) Save(ctx context.Context, e *Entity) (err error) {
	defer m.track(ctx, "save")(&err)
	key := e.Key()
	if key == "" {
		return &PrimaryKeyMissingError{Entity: m.name, Key: m.typ.PrimaryKey()}
	}
	doc, err := e.ToStorage(ctx)
	if err != nil {
		return err
	}
	return m.coll.Update(ctx, key, doc)
}

// Delete removes the document under key.
func (m *Model) Delete(ctx context.Context, key string) (err error) {
	defer m.track(ctx, "delete")(&err)
	return m.coll.Delete(ctx, key)
}

func (m *Model) insert(ctx context.Context, e *Entity) (string, error) {
	if e.Key() == "" {
		e.setKey(NewKey())
	}
	doc, err := e.ToStorage(ctx)
	if err != nil {
		return "", err
	}
	return m.coll.Put(ctx, e.Key(), doc)
}

func (m *Model) materialize(ctx context.Context, key string, doc Document) (*Entity, error) {
	e, err := m.typ.FromStorage(ctx, doc)
	if err != nil {
		return nil, err
	}
	if e.Key() == "" && key != "" {
		e.setKey(key)
	}
	return e, nil
}

func (m *Model) materializeAll(ctx context.Context, docs []Document) ([]*Entity, error) {
	out := make([]*Entity, 0, len(docs))
	for _, doc := range docs {
		e, err := m.materialize(ctx, "", doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// track emits the start signal and returns a func that emits completion
// with the operation's final error.
func (m *Model) track(ctx context.Context, op string) func(*error) {
	start := time.Now()
	emitModelStart(ctx, op, m.name, m.name)
	return func(err *error) {
		emitModelComplete(ctx, op, m.name, m.name, time.Since(start), *err)
	}
}
