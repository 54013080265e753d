package models

import (
	"errors"
	"fmt"

	"github.com/zeusync/stagehand/internal/core/watch"
)

// ErrDetached is returned when mutating a component its stage already deleted.
var ErrDetached = errors.New("component is detached from its stage")

// Validator normalizes a candidate component value.
type Validator func(value any) (any, error)

// Component is a typed value attached to one entity. Mutations go through Set
// so watchers and the models built on it are notified.
type Component struct {
	*watch.Notifier

	entity   EntityID
	typ      string
	value    any
	validate Validator
	attached bool
}

// NewComponent is called by the owning stage; systems never build components.
func NewComponent(n *watch.Notifier, entity EntityID, typ string, value any, validate Validator) *Component {
	return &Component{
		Notifier: n,
		entity:   entity,
		typ:      typ,
		value:    value,
		validate: validate,
		attached: true,
	}
}

func (c *Component) Entity() EntityID { return c.entity }
func (c *Component) Type() string     { return c.typ }
func (c *Component) Value() any       { return c.value }
func (c *Component) Attached() bool   { return c.attached }

// Set validates and stores value, then emits EventChange.
func (c *Component) Set(value any) error {
	if !c.attached {
		return fmt.Errorf("%w: %s/%s", ErrDetached, c.entity, c.typ)
	}
	if c.validate != nil {
		v, err := c.validate(value)
		if err != nil {
			return err
		}
		value = v
	}
	c.value = value
	c.Notify(EventChange, value)
	return nil
}

// Detach marks the component deleted and emits EventDelete. Called by the
// owning stage after every dependent model is gone.
func (c *Component) Detach() {
	if !c.attached {
		return
	}
	c.attached = false
	c.Notify(EventDelete, c)
}

// ValueAs returns the component value as T.
func ValueAs[T any](c *Component) (T, bool) {
	if c == nil {
		var zero T
		return zero, false
	}
	v, ok := c.value.(T)
	return v, ok
}
