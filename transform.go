package strata

import "time"

// Transformation is a named converter attached to a field chain.
//
// A transformation's capabilities are discovered by interface assertion:
//
//   - Locker only: one-way (Hash)
//   - Locker and Unlocker: two-way (Encrypt, Localize)
//   - EventHandler without Locker: lifecycle observer (Stamp, Mask, Redact)
//
// The ID names the transformation within a chain and keys its metadata
// cell and bound arguments. IDs must be unique per field.
type Transformation interface {
	ID() string
}

// Locker converts a plain value into its stored form.
// prev is the value this layer previously produced, already unwound through
// every outer two-way layer, or nil.
type Locker interface {
	Transformation
	Lock(c *Cell, prev, value any, args ...any) (any, error)
}

// Unlocker converts a stored value back into the form its Locker accepted.
type Unlocker interface {
	Transformation
	Unlock(c *Cell, stored any, args ...any) (any, error)
}

// Tester compares a candidate plain value against a stored one-way value.
type Tester interface {
	Transformation
	Test(c *Cell, stored, candidate any, args ...any) (bool, error)
}

// AutoLocker reports whether Lock may run without bound arguments.
type AutoLocker interface {
	AutoLock() bool
}

// AutoUnlocker reports whether Unlock may run without bound arguments.
type AutoUnlocker interface {
	AutoUnlock() bool
}

// EventHandler receives lifecycle events for the fields it is attached to.
type EventHandler interface {
	Transformation
	Events() []Event
	HandleEvent(c *Cell, ev Event, e *Entity, field string, args ...any) error
}

// Event names a lifecycle point of an entity.
type Event string

// Lifecycle events fired by the entity materializers.
const (
	// EventFromStorage fires after an entity is materialized from a stored document.
	EventFromStorage Event = "from_storage"

	// EventFromPlain fires after an entity is materialized from plain values.
	EventFromPlain Event = "from_plain"

	// EventToStorage fires before an entity is serialized to a document.
	EventToStorage Event = "to_storage"

	// EventToPlain fires after plain values are read, with the output map as the first argument.
	EventToPlain Event = "to_plain"
)

// Operation names a call into a transformation.
type Operation string

// Transformation operations.
const (
	OpLock   Operation = "lock"
	OpUnlock Operation = "unlock"
	OpTest   Operation = "test"
	OpEvent  Operation = "event"
)

// Observer sees every call the pipeline makes into a transformation.
type Observer interface {
	ObserveTransform(op Operation, entity, field, transformation string, d time.Duration, err error)
}

// Cell is the scratch reference a transformation uses to reach its
// per-instance, per-field metadata (salt, IV, ...). Values written with Set
// are persisted back into the entity after the call returns.
type Cell struct {
	value   any
	changed bool
}

// Value returns the cell's current content, or nil.
func (c *Cell) Value() any {
	return c.value
}

// Set replaces the cell's content.
func (c *Cell) Set(v any) {
	c.value = v
	c.changed = true
}

func isOneWay(t Transformation) bool {
	_, locks := t.(Locker)
	_, unlocks := t.(Unlocker)
	return locks && !unlocks
}

func isTwoWay(t Transformation) bool {
	_, locks := t.(Locker)
	_, unlocks := t.(Unlocker)
	return locks && unlocks
}

func autoLocks(t Transformation) bool {
	a, ok := t.(AutoLocker)
	return ok && a.AutoLock()
}

func autoUnlocks(t Transformation) bool {
	a, ok := t.(AutoUnlocker)
	return ok && a.AutoUnlock()
}
