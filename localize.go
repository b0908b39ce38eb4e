package strata

import (
	"errors"
	"fmt"
)

// ErrMissingLocale indicates Localize ran without a locale argument.
var ErrMissingLocale = errors.New("missing locale")

// Localize is the two-way container transformation. Its stored form is a
// map of locale to value; the locale is the first bound argument.
//
// Localize never runs without bound arguments: until a locale is selected,
// reads yield no value and writes float.
type Localize struct {
	id       string
	fallback string
}

// LocalizeOption configures a Localize.
type LocalizeOption func(*Localize)

// WithFallbackLocale sets the locale read when the selected one is absent.
func WithFallbackLocale(locale string) LocalizeOption {
	return func(l *Localize) {
		l.fallback = locale
	}
}

// WithLocalizeID overrides the transformation ID. Defaults to "localize".
func WithLocalizeID(id string) LocalizeOption {
	return func(l *Localize) {
		l.id = id
	}
}

// NewLocalize creates a Localize transformation.
func NewLocalize(opts ...LocalizeOption) *Localize {
	l := &Localize{id: "localize"}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ID implements Transformation.
func (l *Localize) ID() string { return l.id }

// Fallback returns the fallback locale, or "".
func (l *Localize) Fallback() string { return l.fallback }

// Lock implements Locker: it merges {locale: value} into the previous map.
// A nil value removes the locale; an emptied map is stored as nil.
func (l *Localize) Lock(_ *Cell, prev, value any, args ...any) (any, error) {
	locale, err := localeArg(args)
	if err != nil {
		return nil, transformFailure(ErrLock, err)
	}
	out := make(map[string]any)
	if prev != nil {
		m, ok := asStringMap(prev)
		if !ok {
			return nil, transformFailure(ErrLock, fmt.Errorf("stored value is %T, want locale map", prev))
		}
		for k, v := range m {
			out[k] = v
		}
	}
	if value == nil {
		delete(out, locale)
	} else {
		out[locale] = value
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Unlock implements Unlocker: it returns the value of the selected locale,
// else of the fallback locale, else nil.
func (l *Localize) Unlock(_ *Cell, stored any, args ...any) (any, error) {
	locale, err := localeArg(args)
	if err != nil {
		return nil, transformFailure(ErrUnlock, err)
	}
	m, ok := asStringMap(stored)
	if !ok {
		return nil, transformFailure(ErrUnlock, fmt.Errorf("stored value is %T, want locale map", stored))
	}
	if v := m[locale]; v != nil {
		return v, nil
	}
	if l.fallback != "" {
		return m[l.fallback], nil
	}
	return nil, nil
}

// SelectLocale binds locale for this transformation on the given fields of
// e, or on every field it is attached to when none are given. Floating
// values are flushed under the new locale.
//
// Bound arguments serve both lock and unlock, so one bind covers reads and
// writes. Stored values are not re-encoded: a read falling back to the
// fallback locale does not copy that value into the selected locale.
func (l *Localize) SelectLocale(e *Entity, locale string, fields ...string) error {
	return e.BindUnlock(l, fields, locale)
}

// SelectLocale binds locale on every Localize transformation of the entity's
// fields, or of the given fields only.
func (e *Entity) SelectLocale(locale string, fields ...string) error {
	seen := make(map[string]bool)
	for _, f := range e.Fields() {
		for _, entry := range e.typ.Resolve(f).Entries() {
			l, ok := entry.Transformation.(*Localize)
			if !ok || seen[l.ID()] {
				continue
			}
			seen[l.ID()] = true
			if err := l.SelectLocale(e, locale, fields...); err != nil {
				return err
			}
		}
	}
	return nil
}

func localeArg(args []any) (string, error) {
	if len(args) == 0 {
		return "", ErrMissingLocale
	}
	s, ok := args[0].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: got %v", ErrMissingLocale, args[0])
	}
	return s, nil
}
