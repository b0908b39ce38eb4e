package strata

import (
	"context"

	"github.com/google/uuid"
)

// Store is the document store the model layer persists entities in.
type Store interface {
	// Collection returns the named collection, creating it if needed.
	Collection(ctx context.Context, name string) (Collection, error)

	// Close releases the store's resources.
	Close() error
}

// Collection holds the documents of one entity type.
type Collection interface {
	// Get returns the document stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (Document, error)

	// Put stores doc under key and returns the key. An empty key is
	// replaced by a generated one.
	Put(ctx context.Context, key string, doc Document) (string, error)

	// Update merges partial into the top level of the document under key,
	// or returns ErrNotFound.
	Update(ctx context.Context, key string, partial Document) error

	// Delete removes the document under key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error

	// ListIndexes returns the names of the collection's secondary indexes.
	ListIndexes(ctx context.Context) ([]string, error)

	// CreateIndex creates a secondary index over fields. It is a no-op if
	// the index exists.
	CreateIndex(ctx context.Context, name string, fields ...string) error

	// Find returns the documents whose index fields equal keys, in index
	// field order. An empty index name returns every document and takes no
	// keys. Keys without an index, or more keys than the index has fields,
	// fail with ErrIndexKeys.
	Find(ctx context.Context, index string, keys ...any) ([]Document, error)
}

// NewKey returns a new time-ordered document key.
func NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}
