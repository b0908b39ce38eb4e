package strata

import (
	"context"
	"sync"
)

// modelKey combines database and entity type for cache lookup.
type modelKey struct {
	database string
	entity   string
}

var (
	models   = make(map[modelKey]*Model)
	modelsMu sync.RWMutex
)

// UseModel returns a cached model or builds a new one.
// The model is cached by database name and entity type name.
func UseModel(ctx context.Context, database string, store Store, et *EntityType) (*Model, error) {
	key := modelKey{database: database, entity: et.Name()}

	// Fast path: read-lock cache check
	modelsMu.RLock()
	if cached, ok := models[key]; ok {
		modelsMu.RUnlock()
		return cached, nil
	}
	modelsMu.RUnlock()

	modelsMu.Lock()
	defer modelsMu.Unlock()

	if cached, ok := models[key]; ok {
		return cached, nil
	}

	m, err := NewModel(ctx, store, et)
	if err != nil {
		return nil, err
	}
	models[key] = m
	return m, nil
}

// ResetModels clears the model cache.
// This is primarily useful for test isolation.
func ResetModels() {
	modelsMu.Lock()
	defer modelsMu.Unlock()
	models = make(map[modelKey]*Model)
}
