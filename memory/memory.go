// Package memory provides a process-local strata.Store.
//
// Documents are kept as JSON snapshots, so callers never share maps with the
// store. Index lookups read fields straight from the snapshots with gjson;
// index fields may be gjson paths such as "address.city".
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/zoobzio/strata"
)

// Store is an in-memory strata.Store.
type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

// New returns an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Collection implements strata.Store.
func (s *Store) Collection(_ context.Context, name string) (strata.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &Collection{
			name:    name,
			docs:    make(map[string][]byte),
			indexes: make(map[string][]string),
		}
		s.collections[name] = c
	}
	return c, nil
}

// Close implements strata.Store.
func (s *Store) Close() error {
	return nil
}

// Collection is an in-memory strata.Collection.
type Collection struct {
	name    string
	mu      sync.RWMutex
	docs    map[string][]byte
	order   []string
	indexes map[string][]string
}

// Get implements strata.Collection.
func (c *Collection) Get(_ context.Context, key string) (strata.Document, error) {
	c.mu.RLock()
	raw, ok := c.docs[key]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", c.name, key, strata.ErrNotFound)
	}
	return decode(raw)
}

// Put implements strata.Collection.
func (c *Collection) Put(_ context.Context, key string, doc strata.Document) (string, error) {
	if key == "" {
		key = strata.NewKey()
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", &strata.CodecError{Err: strata.ErrMarshal, Cause: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.docs[key]; !exists {
		c.order = append(c.order, key)
	}
	c.docs[key] = raw
	return key, nil
}

// Update implements strata.Collection.
func (c *Collection) Update(_ context.Context, key string, partial strata.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.docs[key]
	if !ok {
		return fmt.Errorf("%s/%s: %w", c.name, key, strata.ErrNotFound)
	}
	doc, err := decode(raw)
	if err != nil {
		return err
	}
	for k, v := range partial {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return &strata.CodecError{Err: strata.ErrMarshal, Cause: err}
	}
	c.docs[key] = merged
	return nil
}

// Delete implements strata.Collection.
func (c *Collection) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[key]; !ok {
		return fmt.Errorf("%s/%s: %w", c.name, key, strata.ErrNotFound)
	}
	delete(c.docs, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListIndexes implements strata.Collection.
func (c *Collection) ListIndexes(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.indexes))
	for name := range c.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateIndex implements strata.Collection.
func (c *Collection) CreateIndex(_ context.Context, name string, fields ...string) error {
	if name == "" || len(fields) == 0 {
		return fmt.Errorf("index %q: name and fields are required", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.indexes[name]; !ok {
		c.indexes[name] = append([]string(nil), fields...)
	}
	return nil
}

// Find implements strata.Collection. Documents are returned in insertion order.
func (c *Collection) Find(_ context.Context, index string, keys ...any) ([]strata.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var fields []string
	if index != "" {
		var ok bool
		fields, ok = c.indexes[index]
		if !ok {
			return nil, fmt.Errorf("%s.%s: %w", c.name, index, strata.ErrIndexNotFound)
		}
	}
	if len(keys) > len(fields) {
		return nil, fmt.Errorf("%s.%s: %d keys for %d fields: %w", c.name, index, len(keys), len(fields), strata.ErrIndexKeys)
	}

	want := make([]string, len(keys))
	for i, k := range keys {
		b, err := json.Marshal(k)
		if err != nil {
			return nil, &strata.CodecError{Err: strata.ErrMarshal, Cause: err}
		}
		want[i] = string(b)
	}

	var out []strata.Document
	for _, key := range c.order {
		raw := c.docs[key]
		if !matches(raw, fields, want) {
			continue
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// matches compares the raw JSON of each index field with the encoded key.
func matches(raw []byte, fields, want []string) bool {
	for i, w := range want {
		res := gjson.GetBytes(raw, fields[i])
		if !res.Exists() || res.Raw != w {
			return false
		}
	}
	return true
}

func decode(raw []byte) (strata.Document, error) {
	var doc strata.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &strata.CodecError{Err: strata.ErrUnmarshal, Cause: err}
	}
	return doc, nil
}
