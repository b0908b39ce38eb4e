package strata

import "time"

// Stamp is a lifecycle observer that fills a time field. On EventFromPlain it
// sets the field when it has no value; with WithStampOnSave it also
// overwrites the field on every EventToStorage.
type Stamp struct {
	id     string
	onSave bool
	now    func() time.Time
}

// StampOption configures a Stamp.
type StampOption func(*Stamp)

// WithStampOnSave refreshes the field each time the entity is serialized.
func WithStampOnSave() StampOption {
	return func(s *Stamp) {
		s.onSave = true
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StampOption {
	return func(s *Stamp) {
		s.now = now
	}
}

// WithStampID overrides the transformation ID. Defaults to "stamp".
func WithStampID(id string) StampOption {
	return func(s *Stamp) {
		s.id = id
	}
}

// NewStamp creates a Stamp observer.
func NewStamp(opts ...StampOption) *Stamp {
	s := &Stamp{id: "stamp", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID implements Transformation.
func (s *Stamp) ID() string { return s.id }

// Events implements EventHandler.
func (s *Stamp) Events() []Event {
	if s.onSave {
		return []Event{EventFromPlain, EventToStorage}
	}
	return []Event{EventFromPlain}
}

// HandleEvent implements EventHandler. The time is written through the
// field's chain, so a stamped field may also be encrypted.
func (s *Stamp) HandleEvent(_ *Cell, ev Event, e *Entity, field string, _ ...any) error {
	if ev == EventToStorage && s.onSave {
		return e.Set(field, s.now().UTC())
	}
	if ev != EventFromPlain {
		return nil
	}
	if _, floating := e.Floating(field); floating || e.Stored(field) != nil {
		return nil
	}
	return e.Set(field, s.now().UTC())
}
