// Package mongo provides a strata.Store backed by MongoDB.
//
// Document keys are stored in _id. Documents returned by the store are
// normalized to plain Go values and do not carry _id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zoobzio/strata"
	strbson "github.com/zoobzio/strata/bson"
)

const idField = "_id"

// Store is a MongoDB-backed strata.Store over one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	owned  bool
}

// Open connects to uri and uses database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, db: client.Database(database), owned: true}, nil
}

// New wraps an existing database handle. Close does not disconnect it.
func New(db *mongo.Database) *Store {
	return &Store{client: db.Client(), db: db}
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// Collection implements strata.Store.
func (s *Store) Collection(_ context.Context, name string) (strata.Collection, error) {
	if name == "" {
		return nil, errors.New("mongo: empty collection name")
	}
	return &Collection{coll: s.db.Collection(name), name: name}, nil
}

// Close implements strata.Store.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// Collection is a MongoDB-backed strata.Collection.
type Collection struct {
	coll *mongo.Collection
	name string
}

// Get implements strata.Collection.
func (c *Collection) Get(ctx context.Context, key string) (strata.Document, error) {
	var raw bson.M
	err := c.coll.FindOne(ctx, bson.M{idField: key}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s/%s: %w", c.name, key, strata.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return document(raw), nil
}

// Put implements strata.Collection.
func (c *Collection) Put(ctx context.Context, key string, doc strata.Document) (string, error) {
	if key == "" {
		key = strata.NewKey()
	}
	full := make(bson.M, len(doc)+1)
	for k, v := range doc {
		full[k] = v
	}
	full[idField] = key
	_, err := c.coll.ReplaceOne(ctx, bson.M{idField: key}, full, options.Replace().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", c.name, key, err)
	}
	return key, nil
}

// Update implements strata.Collection.
func (c *Collection) Update(ctx context.Context, key string, partial strata.Document) error {
	set := make(bson.M, len(partial))
	for k, v := range partial {
		if k != idField {
			set[k] = v
		}
	}
	res, err := c.coll.UpdateOne(ctx, bson.M{idField: key}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, key, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", c.name, key, strata.ErrNotFound)
	}
	return nil
}

// Delete implements strata.Collection.
func (c *Collection) Delete(ctx context.Context, key string) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{idField: key})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, key, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", c.name, key, strata.ErrNotFound)
	}
	return nil
}

// indexSpec is the subset of an index description the store reads.
type indexSpec struct {
	Name string `bson:"name"`
	Key  bson.D `bson:"key"`
}

func (c *Collection) indexes(ctx context.Context) ([]indexSpec, error) {
	cur, err := c.coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	var specs []indexSpec
	if err := cur.All(ctx, &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// ListIndexes implements strata.Collection. The built-in _id index is omitted.
func (c *Collection) ListIndexes(ctx context.Context) ([]string, error) {
	specs, err := c.indexes(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, s := range specs {
		if s.Name != "_id_" {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// CreateIndex implements strata.Collection.
func (c *Collection) CreateIndex(ctx context.Context, name string, fields ...string) error {
	if name == "" || len(fields) == 0 {
		return fmt.Errorf("index %q: name and fields are required", name)
	}
	keys := make(bson.D, len(fields))
	for i, f := range fields {
		keys[i] = bson.E{Key: f, Value: 1}
	}
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(name),
	})
	if err != nil {
		return fmt.Errorf("create index %s.%s: %w", c.name, name, err)
	}
	return nil
}

// Find implements strata.Collection.
func (c *Collection) Find(ctx context.Context, index string, keys ...any) ([]strata.Document, error) {
	filter := bson.D{}
	if index == "" && len(keys) > 0 {
		return nil, fmt.Errorf("%s: %d keys without an index: %w", c.name, len(keys), strata.ErrIndexKeys)
	}
	if index != "" {
		fields, err := c.indexFields(ctx, index)
		if err != nil {
			return nil, err
		}
		if len(keys) > len(fields) {
			return nil, fmt.Errorf("%s.%s: %d keys for %d fields: %w", c.name, index, len(keys), len(fields), strata.ErrIndexKeys)
		}
		for i, k := range keys {
			filter = append(filter, bson.E{Key: fields[i], Value: k})
		}
	}

	cur, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []strata.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, &strata.CodecError{Err: strata.ErrUnmarshal, Cause: err}
		}
		out = append(out, document(raw))
	}
	return out, cur.Err()
}

func (c *Collection) indexFields(ctx context.Context, index string) ([]string, error) {
	specs, err := c.indexes(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range specs {
		if s.Name != index {
			continue
		}
		fields := make([]string, len(s.Key))
		for i, e := range s.Key {
			fields[i] = e.Key
		}
		return fields, nil
	}
	return nil, fmt.Errorf("%s.%s: %w", c.name, index, strata.ErrIndexNotFound)
}

func document(raw bson.M) strata.Document {
	m, _ := strbson.Normalize(raw).(map[string]any)
	delete(m, idField)
	return strata.Document(m)
}
