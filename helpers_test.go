package strata

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

var testKey = []byte("32-byte-key-for-aes-256-encrypt!")

// wrap is a two-way transformation that encloses values in "id(...)".
type wrap struct{ id string }

func (w wrap) ID() string       { return w.id }
func (w wrap) AutoLock() bool   { return true }
func (w wrap) AutoUnlock() bool { return true }

func (w wrap) Lock(_ *Cell, _, value any, _ ...any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return fmt.Sprintf("%s(%v)", w.id, value), nil
}

func (w wrap) Unlock(_ *Cell, stored any, _ ...any) (any, error) {
	s, ok := stored.(string)
	if !ok || !strings.HasPrefix(s, w.id+"(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("%s: not wrapped: %v", w.id, stored)
	}
	return strings.TrimSuffix(strings.TrimPrefix(s, w.id+"("), ")"), nil
}

// digest is a one-way transformation without a Tester.
type digest struct{ id string }

func (d digest) ID() string     { return d.id }
func (d digest) AutoLock() bool { return true }

func (d digest) Lock(_ *Cell, _, value any, _ ...any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return fmt.Sprintf("%s:%d", d.id, len(fmt.Sprint(value))), nil
}

// suffix is a two-way transformation that needs a bound argument.
type suffix struct{ id string }

func (s suffix) ID() string { return s.id }

func (s suffix) Lock(_ *Cell, _, value any, args ...any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return fmt.Sprintf("%v#%v", value, args[0]), nil
}

func (s suffix) Unlock(_ *Cell, stored any, args ...any) (any, error) {
	v, tag, ok := strings.Cut(stored.(string), "#")
	if !ok || tag != fmt.Sprint(args[0]) {
		return nil, fmt.Errorf("%s: tag %q, bound %v", s.id, tag, args[0])
	}
	return v, nil
}

// recorder is a lifecycle observer that records the events it sees.
type recorder struct {
	id     string
	events []Event
	seen   []string
	fail   error
}

func (r *recorder) ID() string      { return r.id }
func (r *recorder) Events() []Event { return r.events }

func (r *recorder) HandleEvent(c *Cell, ev Event, _ *Entity, field string, _ ...any) error {
	r.seen = append(r.seen, string(ev)+":"+field)
	n, _ := c.Value().(int)
	c.Set(n + 1)
	return r.fail
}

// observed records ObserveTransform calls.
type observed struct {
	calls []string
}

func (o *observed) ObserveTransform(op Operation, entity, field, transformation string, _ time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.calls = append(o.calls, fmt.Sprintf("%s %s.%s %s %s", op, entity, field, transformation, status))
}

func mustDefine(t *testing.T, reg *Registry, name string, opts ...TypeOption) *EntityType {
	t.Helper()
	et, err := reg.Define(name, opts...)
	if err != nil {
		t.Fatalf("Define(%q) error: %v", name, err)
	}
	return et
}

func mustHash(t *testing.T, opts ...HashOption) *Hash {
	t.Helper()
	h, err := NewHash(opts...)
	if err != nil {
		t.Fatalf("NewHash() error: %v", err)
	}
	return h
}

func mustEncrypt(t *testing.T, opts ...EncryptOption) *Encrypt {
	t.Helper()
	enc, err := NewEncrypt(testKey, opts...)
	if err != nil {
		t.Fatalf("NewEncrypt() error: %v", err)
	}
	return enc
}
