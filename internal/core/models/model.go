package models

import (
	"errors"
	"fmt"

	"github.com/zeusync/stagehand/internal/core/watch"
)

var (
	ErrInvalidModelType = errors.New("invalid model type")
	ErrNotRequired      = errors.New("component type is not required by model")
)

// ModelType declares a view joining several component types of one entity.
// Requires is ordered; the order is the order Components reports.
type ModelType struct {
	Name     string
	Requires []string

	// Init runs when a model is created, before any system sees it.
	Init func(m *Model) error
	// Dispose runs before a model is destroyed, while every required
	// component is still readable.
	Dispose func(m *Model)
}

func NewModelType(name string, requires ...string) *ModelType {
	return &ModelType{Name: name, Requires: requires}
}

// Validate checks the declaration is usable.
func (t *ModelType) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil", ErrInvalidModelType)
	}
	if len(t.Requires) == 0 {
		return fmt.Errorf("%w: %s requires no components", ErrInvalidModelType, t.Name)
	}
	seen := make(map[string]struct{}, len(t.Requires))
	for _, typ := range t.Requires {
		if _, dup := seen[typ]; dup {
			return fmt.Errorf("%w: %s requires %q twice", ErrInvalidModelType, t.Name, typ)
		}
		seen[typ] = struct{}{}
	}
	return nil
}

func (t *ModelType) String() string { return t.Name }

// Lookup resolves sibling models of the same or other entities.
type Lookup interface {
	EntityModel(entity EntityID, typ *ModelType) (*Model, bool)
}

// Model is a live view over the components of one entity. It exists exactly
// while the entity owns every required component. Each required component's
// change is re-emitted on the model under the component type name.
type Model struct {
	*watch.Notifier

	typ        *ModelType
	entity     EntityID
	components map[string]*Component
	subs       []watch.Subscription
	lookup     Lookup
	alive      bool
}

// NewModel is called by the owning stage's reconciliation engine.
func NewModel(n *watch.Notifier, typ *ModelType, entity EntityID, components map[string]*Component, lookup Lookup) *Model {
	m := &Model{
		Notifier:   n,
		typ:        typ,
		entity:     entity,
		components: components,
		lookup:     lookup,
		alive:      true,
	}
	for _, name := range typ.Requires {
		c := components[name]
		m.subs = append(m.subs, c.WatchType(EventChange, watch.Options{}, func(e watch.Event) error {
			m.Notify(c.Type(), e.Data)
			return nil
		}))
	}
	return m
}

func (m *Model) Type() *ModelType { return m.typ }
func (m *Model) Entity() EntityID { return m.entity }
func (m *Model) Alive() bool      { return m.alive }

// Component returns the live component of a required type.
func (m *Model) Component(typ string) *Component {
	return m.components[typ]
}

// Components returns the required components in declaration order.
func (m *Model) Components() []*Component {
	out := make([]*Component, 0, len(m.typ.Requires))
	for _, name := range m.typ.Requires {
		out = append(out, m.components[name])
	}
	return out
}

// Value returns the current value of a required component.
func (m *Model) Value(typ string) any {
	if c := m.components[typ]; c != nil {
		return c.Value()
	}
	return nil
}

// Set mutates a required component through its setter.
func (m *Model) Set(typ string, value any) error {
	c := m.components[typ]
	if c == nil {
		return fmt.Errorf("%w: %s on %s", ErrNotRequired, typ, m.typ.Name)
	}
	return c.Set(value)
}

// Sibling finds another model of the same entity.
func (m *Model) Sibling(typ *ModelType) (*Model, bool) {
	if m.lookup == nil {
		return nil, false
	}
	return m.lookup.EntityModel(m.entity, typ)
}

// Destroy detaches the model from its components and emits EventDelete.
func (m *Model) Destroy() {
	if !m.alive {
		return
	}
	m.alive = false
	for _, sub := range m.subs {
		sub.Cancel()
	}
	m.subs = nil
	m.Notify(EventDelete, m)
}

// Get returns the value of a required component as T.
func Get[T any](m *Model, typ string) (T, bool) {
	return ValueAs[T](m.Component(typ))
}
