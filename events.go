package strata

import "errors"

// Trigger invokes every handler registered for ev on the entity's type with
// (entity, field, args...), each through its metadata cell. All handlers
// run; their errors are joined.
func (e *Entity) Trigger(ev Event, args ...any) error {
	var errs []error
	for _, h := range e.typ.handlersFor(ev) {
		handler := h.entry.Transformation.(EventHandler)
		err := e.observe(OpEvent, h.field, h.entry, func() error {
			return e.withCell(h.field, h.entry.ID, func(c *Cell) error {
				return handler.HandleEvent(c, ev, e, h.field, args...)
			})
		})
		if err != nil {
			errs = append(errs, e.wrap(err, ErrEvent, OpEvent, h.field, h.entry))
		}
	}
	return errors.Join(errs...)
}
