package strata

import (
	"context"
	"errors"
	"time"
)

// Get returns the plain value of field, or nil when the chain cannot run
// or the field is unset.
func (e *Entity) Get(field string) (any, error) {
	v, _, err := e.Lookup(field)
	return v, err
}

// Lookup returns the plain value of field. ok is false when the chain cannot
// produce a plain value: its last entry is one-way, or a two-way entry has no
// bound arguments and cannot unlock on its own. A floating value is returned
// as is.
func (e *Entity) Lookup(field string) (any, bool, error) {
	if v, ok := e.floating[field]; ok {
		return v, true, nil
	}

	chain := e.typ.Resolve(field)
	if !e.canGet(field, chain) {
		emitFieldGet(context.Background(), e.typ.name, field, false)
		return nil, false, nil
	}

	value := e.stored[field]
	for _, entry := range chain.Entries() {
		if value == nil {
			break
		}
		if !isTwoWay(entry.Transformation) {
			continue
		}
		args, ok := e.unlockArgs(field, entry)
		if !ok {
			continue
		}
		v, err := e.unlock(field, entry, value, args)
		if err != nil {
			return nil, false, err
		}
		value = v
	}
	emitFieldGet(context.Background(), e.typ.name, field, true)
	return value, true, nil
}

// Set locks value through the chain of field and stores the result. When a
// lock-capable entry has no bound arguments and cannot lock on its own, the
// value is held as floating until the arguments are bound.
func (e *Entity) Set(field string, value any) error {
	chain := e.typ.Resolve(field)
	if !e.canSet(field, chain) {
		e.floating[field] = value
		emitFieldFloated(context.Background(), e.typ.name, field)
		return nil
	}

	entries := chain.Entries()
	n := len(entries)

	// prev[i] is the stored value unwound through entries 0..i-1. Only
	// entries with bound arguments unwind; past any other the trail is nil.
	prev := make([]any, n)
	cur := e.stored[field]
	for i := 0; i < n; i++ {
		prev[i] = cur
		if i == n-1 || cur == nil {
			continue
		}
		if !isTwoWay(entries[i].Transformation) {
			cur = nil
			continue
		}
		args, ok := e.Bound(field, entries[i].ID)
		if !ok {
			cur = nil
			continue
		}
		v, err := e.unlock(field, entries[i], cur, args)
		if err != nil {
			return err
		}
		cur = v
	}

	locked := value
	for i := n - 1; i >= 0; i-- {
		args, _ := e.Bound(field, entries[i].ID)
		v, err := e.lock(field, entries[i], prev[i], locked, args)
		if err != nil {
			return err
		}
		locked = v
	}

	if locked == nil {
		delete(e.stored, field)
	} else {
		e.stored[field] = locked
	}
	delete(e.floating, field)
	emitFieldSet(context.Background(), e.typ.name, field, n)
	return nil
}

// SetStored writes an already locked value into field, bypassing the chain.
func (e *Entity) SetStored(field string, value any) {
	if value == nil {
		delete(e.stored, field)
		return
	}
	e.stored[field] = value
}

// BindUnlock records args for tr on every field in fields whose chain holds
// tr, or on every such field of the type when fields is empty. Floating
// values of those fields are flushed through Set.
//
// Arguments are shared by lock and unlock: both read the same bound set.
func (e *Entity) BindUnlock(tr Transformation, fields []string, args ...any) error {
	targets := e.bindTargets(tr, fields)
	for _, f := range targets {
		e.bind(f, tr.ID(), args)
	}
	emitBindUnlock(context.Background(), e.typ.name, tr.ID(), len(targets))

	for _, f := range targets {
		v, ok := e.floating[f]
		if !ok {
			continue
		}
		if err := e.Set(f, v); err != nil {
			return err
		}
	}
	return nil
}

// BindLock records args for tr like BindUnlock, then re-runs Set with each
// field's current plain value so the stored form is re-encoded under the
// new arguments.
func (e *Entity) BindLock(tr Transformation, fields []string, args ...any) error {
	targets := e.bindTargets(tr, fields)
	for _, f := range targets {
		e.bind(f, tr.ID(), args)
	}
	emitBindLock(context.Background(), e.typ.name, tr.ID(), len(targets))

	for _, f := range targets {
		v, ok, err := e.Lookup(f)
		if err != nil {
			return err
		}
		if !ok || v == nil {
			continue
		}
		if err := e.Set(f, v); err != nil {
			return err
		}
	}
	return nil
}

// Test reports whether candidate matches the stored value of field.
//
// Only the first chain entry is consulted. A one-way entry compares through
// its Tester; a two-way entry unlocks the stored value and compares by value.
// Without a chain, or with nothing stored, the stored value is compared
// directly. An entry that cannot run for lack of arguments yields false.
func (e *Entity) Test(field string, candidate any) (bool, error) {
	stored := e.stored[field]
	chain := e.typ.Resolve(field)
	if chain.Len() == 0 {
		return valueEqual(stored, candidate), nil
	}

	first := chain.entries[0]
	args, bound := e.Bound(field, first.ID)
	tr := first.Transformation

	switch {
	case isOneWay(tr):
		if !bound && !autoLocks(tr) {
			return false, nil
		}
		return e.test(field, first, stored, candidate, args)
	case isTwoWay(tr) && stored != nil:
		if !bound && !autoUnlocks(tr) {
			return false, nil
		}
		v, err := e.unlock(field, first, stored, args)
		if err != nil {
			return false, err
		}
		return valueEqual(v, candidate), nil
	}
	return valueEqual(stored, candidate), nil
}

// canGet reports whether the chain can produce a plain value.
func (e *Entity) canGet(field string, chain *Chain) bool {
	if _, oneWay := chain.terminalOneWay(); oneWay {
		return false
	}
	for _, entry := range chain.Entries() {
		if !isTwoWay(entry.Transformation) {
			continue
		}
		if _, ok := e.unlockArgs(field, entry); !ok {
			return false
		}
	}
	return true
}

// canSet reports whether every lock-capable entry can run.
func (e *Entity) canSet(field string, chain *Chain) bool {
	for _, entry := range chain.Entries() {
		if _, ok := e.Bound(field, entry.ID); ok {
			continue
		}
		if !autoLocks(entry.Transformation) {
			return false
		}
	}
	return true
}

// unlockArgs returns the arguments to unlock entry with, and whether it may run.
func (e *Entity) unlockArgs(field string, entry ChainEntry) ([]any, bool) {
	if args, ok := e.Bound(field, entry.ID); ok {
		return args, true
	}
	if autoUnlocks(entry.Transformation) {
		return nil, true
	}
	return nil, false
}

func (e *Entity) bindTargets(tr Transformation, fields []string) []string {
	if len(fields) == 0 {
		fields = e.Fields()
	}
	var out []string
	for _, f := range fields {
		if e.typ.hasEntry(f, tr.ID()) {
			out = append(out, f)
		}
	}
	return out
}

func (e *Entity) bind(field, id string, args []any) {
	if e.bound[field] == nil {
		e.bound[field] = make(map[string][]any)
	}
	e.bound[field][id] = append([]any(nil), args...)
}

// withCell loads the metadata cell of (field, id) into a scratch reference,
// runs fn, and writes the reference back if fn replaced its value.
func (e *Entity) withCell(field, id string, fn func(c *Cell) error) error {
	c := &Cell{value: e.cells[field][id]}
	err := fn(c)
	if c.changed {
		if e.cells[field] == nil {
			e.cells[field] = make(map[string]any)
		}
		if c.value == nil {
			delete(e.cells[field], id)
		} else {
			e.cells[field][id] = c.value
		}
	}
	return err
}

func (e *Entity) lock(field string, entry ChainEntry, prev, value any, args []any) (any, error) {
	l, ok := entry.Transformation.(Locker)
	if !ok {
		return value, nil
	}
	var out any
	err := e.observe(OpLock, field, entry, func() error {
		return e.withCell(field, entry.ID, func(c *Cell) error {
			v, err := l.Lock(c, prev, value, args...)
			out = v
			return err
		})
	})
	if err != nil {
		return nil, e.wrap(err, ErrLock, OpLock, field, entry)
	}
	return out, nil
}

func (e *Entity) unlock(field string, entry ChainEntry, stored any, args []any) (any, error) {
	u, ok := entry.Transformation.(Unlocker)
	if !ok {
		return stored, nil
	}
	var out any
	err := e.observe(OpUnlock, field, entry, func() error {
		return e.withCell(field, entry.ID, func(c *Cell) error {
			v, err := u.Unlock(c, stored, args...)
			out = v
			return err
		})
	})
	if err != nil {
		return nil, e.wrap(err, ErrUnlock, OpUnlock, field, entry)
	}
	return out, nil
}

// test compares through the entry's Tester, or by re-locking the candidate
// when the transformation has none.
func (e *Entity) test(field string, entry ChainEntry, stored, candidate any, args []any) (bool, error) {
	var match bool
	err := e.observe(OpTest, field, entry, func() error {
		return e.withCell(field, entry.ID, func(c *Cell) error {
			if t, ok := entry.Transformation.(Tester); ok {
				m, err := t.Test(c, stored, candidate, args...)
				match = m
				return err
			}
			l := entry.Transformation.(Locker)
			v, err := l.Lock(c, nil, candidate, args...)
			match = valueEqual(v, stored)
			return err
		})
	})
	if err != nil {
		return false, e.wrap(err, ErrLock, OpTest, field, entry)
	}
	return match, nil
}

func (e *Entity) observe(op Operation, field string, entry ChainEntry, fn func() error) error {
	obs := e.typ.reg.observer
	if obs == nil {
		return fn()
	}
	start := time.Now()
	err := fn()
	obs.ObserveTransform(op, e.typ.name, field, entry.ID, time.Since(start), err)
	return err
}

// wrap attaches entity, field and transformation context to err.
func (e *Entity) wrap(err, fallback error, op Operation, field string, entry ChainEntry) error {
	var te *TransformError
	if errors.As(err, &te) {
		out := *te
		if out.Entity == "" {
			out.Entity = e.typ.name
		}
		if out.Field == "" {
			out.Field = field
		}
		if out.Transformation == "" {
			out.Transformation = entry.ID
		}
		if out.Operation == "" {
			out.Operation = op
		}
		return &out
	}
	return &TransformError{
		Err:            fallback,
		Entity:         e.typ.name,
		Field:          field,
		Transformation: entry.ID,
		Operation:      op,
		Cause:          err,
	}
}
