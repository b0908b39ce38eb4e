package strata

import (
	"context"
	"sort"
	"sync"
)

// DefaultPrimaryKey is the primary key field used when none is configured.
const DefaultPrimaryKey = "id"

// Registry holds the entity types of a process and their field chains.
//
// Types are registered at startup. A type's chains become immutable the first
// time an instance of it is created, after which lookups are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]*EntityType
	observer Observer
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithObserver installs an observer that sees every transformation call.
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) {
		r.observer = o
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{types: make(map[string]*EntityType)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TypeOption configures an EntityType at definition.
type TypeOption func(*EntityType)

// WithParent makes the type inherit chains from parent for fields it does
// not declare a chain for.
func WithParent(parent *EntityType) TypeOption {
	return func(t *EntityType) {
		t.parent = parent
	}
}

// WithPrimaryKey sets the primary key field. Defaults to DefaultPrimaryKey.
func WithPrimaryKey(field string) TypeOption {
	return func(t *EntityType) {
		t.primaryKey = field
	}
}

// WithFields declares plain fields that carry no chain.
func WithFields(fields ...string) TypeOption {
	return func(t *EntityType) {
		for _, f := range fields {
			t.declare(f)
		}
	}
}

// Define registers a new entity type under name.
func (r *Registry) Define(name string, opts ...TypeOption) (*EntityType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[name]; ok {
		return nil, newConfigError(ErrDuplicateType, name, "", "")
	}

	t := &EntityType{
		reg:        r,
		name:       name,
		primaryKey: DefaultPrimaryKey,
		chains:     make(map[string]*Chain),
		observers:  make(map[string][]ChainEntry),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.parent != nil && t.primaryKey == DefaultPrimaryKey {
		t.primaryKey = t.parent.primaryKey
	}
	t.declare(t.primaryKey)

	r.types[name] = t
	return t, nil
}

// Lookup returns the entity type registered under name.
func (r *Registry) Lookup(name string) (*EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// MustLookup returns the entity type registered under name or an ErrUnknownType error.
func (r *Registry) MustLookup(name string) (*EntityType, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, newConfigError(ErrUnknownType, name, "", "")
	}
	return t, nil
}

// Names returns every registered type name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChainEntry is one transformation attached to a field.
// The entry ID keys the transformation's metadata cell and bound arguments.
type ChainEntry struct {
	ID             string
	Transformation Transformation
}

// Chain is the ordered list of lock-capable transformations of one field.
// Entry 0 is the outermost layer of the stored value.
type Chain struct {
	entries []ChainEntry
}

// Entries returns a copy of the chain's entries.
func (c *Chain) Entries() []ChainEntry {
	if c == nil {
		return nil
	}
	out := make([]ChainEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Contains reports whether an entry with the given ID is on the chain.
func (c *Chain) Contains(id string) bool {
	if c == nil {
		return false
	}
	for _, e := range c.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// terminalOneWay returns the chain's last entry if it is one-way.
func (c *Chain) terminalOneWay() (ChainEntry, bool) {
	if c.Len() == 0 {
		return ChainEntry{}, false
	}
	last := c.entries[len(c.entries)-1]
	return last, isOneWay(last.Transformation)
}

type handlerRef struct {
	field string
	entry ChainEntry
}

// EntityType is a registered entity type: its fields, chains and lifecycle handlers.
type EntityType struct {
	reg        *Registry
	name       string
	parent     *EntityType
	primaryKey string

	mu        sync.RWMutex
	fields    []string
	declared  map[string]bool
	chains    map[string]*Chain
	observers map[string][]ChainEntry
	frozen    bool

	// Computed at freeze.
	effective   map[string]*Chain
	effObserver map[string][]ChainEntry
	effFields   []string
	handlers    map[Event][]handlerRef
}

// Name returns the type's registered name.
func (t *EntityType) Name() string {
	return t.name
}

// PrimaryKey returns the primary key field.
func (t *EntityType) PrimaryKey() string {
	return t.primaryKey
}

// Parent returns the type's parent, or nil.
func (t *EntityType) Parent() *EntityType {
	return t.parent
}

// declare records field in declaration order. Callers hold t.mu or own t exclusively.
func (t *EntityType) declare(field string) {
	if t.declared == nil {
		t.declared = make(map[string]bool)
	}
	if field == "" || t.declared[field] {
		return
	}
	t.declared[field] = true
	t.fields = append(t.fields, field)
}

// Attach adds tr to the chain of field.
//
// A second one-way transformation is rejected with a ChainOrderError. A
// two-way transformation attached after a terminal one-way one is inserted
// just before it, so the one-way layer stays innermost. Transformations
// without Lock are registered as lifecycle observers of the field only.
func (t *EntityType) Attach(field string, tr Transformation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return newConfigError(ErrFrozen, t.name, field, tr.ID())
	}
	if field == "" {
		return newConfigError(ErrUnknownField, t.name, field, tr.ID())
	}

	if _, locks := tr.(Locker); !locks {
		if _, handles := tr.(EventHandler); !handles {
			return newConfigError(ErrInvalidAlgorithm, t.name, field, tr.ID())
		}
		for _, e := range t.observers[field] {
			if e.ID == tr.ID() {
				return newConfigError(ErrDuplicateTransformation, t.name, field, tr.ID())
			}
		}
		t.observers[field] = append(t.observers[field], ChainEntry{ID: tr.ID(), Transformation: tr})
		t.declare(field)
		emitChainAttached(context.Background(), t.name, field, tr.ID(), -1)
		return nil
	}

	chain, ok := t.chains[field]
	if !ok {
		chain = &Chain{}
		t.chains[field] = chain
	}
	if chain.Contains(tr.ID()) {
		return newConfigError(ErrDuplicateTransformation, t.name, field, tr.ID())
	}

	entry := ChainEntry{ID: tr.ID(), Transformation: tr}
	if last, oneWay := chain.terminalOneWay(); oneWay {
		if isOneWay(tr) {
			return &ChainOrderError{
				Entity:         t.name,
				Field:          field,
				Existing:       last.ID,
				Transformation: tr.ID(),
			}
		}
		pos := len(chain.entries) - 1
		chain.entries = append(chain.entries[:pos], entry, last)
		t.declare(field)
		emitChainReordered(context.Background(), t.name, field, tr.ID(), last.ID)
		emitChainAttached(context.Background(), t.name, field, tr.ID(), pos)
		return nil
	}

	chain.entries = append(chain.entries, entry)
	t.declare(field)
	emitChainAttached(context.Background(), t.name, field, tr.ID(), len(chain.entries)-1)
	return nil
}

// MustAttach is Attach for static registration; it panics on error.
func (t *EntityType) MustAttach(field string, tr Transformation) *EntityType {
	if err := t.Attach(field, tr); err != nil {
		panic(err)
	}
	return t
}

// Resolve returns the chain of field: the type's own chain if one is
// registered, else the nearest ancestor's. Chains are never merged.
func (t *EntityType) Resolve(field string) *Chain {
	t.mu.RLock()
	if t.frozen {
		c := t.effective[field]
		t.mu.RUnlock()
		return c
	}
	c, ok := t.chains[field]
	t.mu.RUnlock()
	if ok {
		return c
	}
	if t.parent != nil {
		return t.parent.Resolve(field)
	}
	return nil
}

// observersOf returns the lifecycle observers of field with the same
// own-else-ancestor rule as Resolve.
func (t *EntityType) observersOf(field string) []ChainEntry {
	t.mu.RLock()
	if t.frozen {
		o := t.effObserver[field]
		t.mu.RUnlock()
		return o
	}
	o, ok := t.observers[field]
	t.mu.RUnlock()
	if ok {
		return o
	}
	if t.parent != nil {
		return t.parent.observersOf(field)
	}
	return nil
}

// Fields returns every field known to the type, ancestors' first.
func (t *EntityType) Fields() []string {
	t.mu.RLock()
	if t.frozen {
		out := append([]string(nil), t.effFields...)
		t.mu.RUnlock()
		return out
	}
	own := append([]string(nil), t.fields...)
	t.mu.RUnlock()

	var out []string
	seen := make(map[string]bool)
	if t.parent != nil {
		for _, f := range t.parent.Fields() {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range own {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Frozen reports whether the type's chains are immutable.
func (t *EntityType) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// Freeze computes the effective chains and event index and makes the type
// immutable. It is called on first instance creation and is idempotent.
func (t *EntityType) Freeze() {
	if t.Frozen() {
		return
	}
	if t.parent != nil {
		t.parent.Freeze()
	}

	fields := t.Fields()
	effective := make(map[string]*Chain, len(fields))
	effObserver := make(map[string][]ChainEntry, len(fields))
	handlers := make(map[Event][]handlerRef)
	for _, f := range fields {
		chain := t.Resolve(f)
		observers := t.observersOf(f)
		if chain != nil {
			effective[f] = chain
		}
		if observers != nil {
			effObserver[f] = observers
		}
		for _, entry := range append(chain.Entries(), observers...) {
			h, ok := entry.Transformation.(EventHandler)
			if !ok {
				continue
			}
			for _, ev := range h.Events() {
				handlers[ev] = append(handlers[ev], handlerRef{field: f, entry: entry})
			}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return
	}
	t.effective = effective
	t.effObserver = effObserver
	t.effFields = fields
	t.handlers = handlers
	t.frozen = true
	emitTypeFrozen(context.Background(), t.name, len(fields), len(effective))
}

// FieldsWith returns the fields whose chain or observers hold a
// transformation accepted by match.
func (t *EntityType) FieldsWith(match func(Transformation) bool) []string {
	var out []string
	for _, f := range t.Fields() {
		entries := append(t.Resolve(f).Entries(), t.observersOf(f)...)
		for _, e := range entries {
			if match(e.Transformation) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// ModifiedFields returns the fields that have a transformation with the given ID attached.
func (t *EntityType) ModifiedFields(id string) []string {
	return t.FieldsWith(func(tr Transformation) bool { return tr.ID() == id })
}

// handlersFor returns the handlers registered for ev. The type must be frozen.
func (t *EntityType) handlersFor(ev Event) []handlerRef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handlers[ev]
}

// hasEntry reports whether field has an entry with ID id, on its chain or as an observer.
func (t *EntityType) hasEntry(field, id string) bool {
	if t.Resolve(field).Contains(id) {
		return true
	}
	for _, e := range t.observersOf(field) {
		if e.ID == id {
			return true
		}
	}
	return false
}
