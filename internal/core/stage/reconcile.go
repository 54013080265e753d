package stage

import (
	"errors"
	"fmt"
	"slices"

	"github.com/TheBitDrifter/mask"
	"github.com/zeusync/stagehand/internal/core/models"
	"github.com/zeusync/stagehand/internal/core/observability/log"
)

// CreateComponent validates spec against the registry, stores the component
// and creates every model the entity now satisfies. Hook failures raised
// while binding those models are joined into the returned error; the
// component exists whenever the returned component is non-nil.
func (s *Stage) CreateComponent(spec ComponentSpec) (*models.Component, error) {
	value, err := s.registry.Validate(spec.Type, spec.Value)
	if err != nil {
		return nil, err
	}
	bit, err := s.registry.Bit(spec.Type)
	if err != nil {
		return nil, err
	}

	e := s.entities[spec.Entity]
	if e != nil {
		if _, dup := e.components[spec.Type]; dup {
			return nil, &DuplicateComponentError{Entity: spec.Entity, Type: spec.Type}
		}
	} else {
		s.seq++
		e = &entity{id: spec.Entity, seq: s.seq, components: make(map[string]*models.Component)}
		s.entities[spec.Entity] = e
	}

	typ := spec.Type
	c := models.NewComponent(s.NewNotifier(), spec.Entity, typ, value, func(v any) (any, error) {
		return s.registry.Validate(typ, v)
	})
	e.components[typ] = c
	e.order = append(e.order, typ)
	e.mask.Mark(bit)
	s.Notify(EventComponentCreate, c)

	var errs []error
	for _, d := range slices.Clone(s.byType[typ]) {
		if s.decls[d.typ] != d || e.components[typ] != c {
			continue
		}
		if _, exists := d.models[e.id]; exists || !e.mask.ContainsAll(d.mask) {
			continue
		}
		errs = append(errs, s.createModel(d, e)...)
	}
	return c, errors.Join(errs...)
}

// DeleteComponent destroys every model depending on c, then removes c from the
// store and detaches it. Models are torn down while c is still readable, but
// the entity no longer counts as having c, so hooks cannot rebuild them.
func (s *Stage) DeleteComponent(c *models.Component) error {
	if c == nil {
		return ErrComponentNotFound
	}
	e := s.entities[c.Entity()]
	if e == nil || e.components[c.Type()] != c {
		return fmt.Errorf("%w: %s/%s", ErrComponentNotFound, c.Entity(), c.Type())
	}
	bit, err := s.registry.Bit(c.Type())
	if err != nil {
		return err
	}
	e.mask.Unmark(bit)

	var errs []error
	for _, d := range slices.Clone(s.byType[c.Type()]) {
		if inst, ok := d.models[e.id]; ok {
			errs = append(errs, s.destroyModel(d, inst)...)
		}
	}
	// a delete hook may already have removed it
	if e.components[c.Type()] != c {
		return errors.Join(errs...)
	}

	e.drop(c.Type())
	if len(e.components) == 0 {
		delete(s.entities, e.id)
	}
	c.Detach()
	s.Notify(EventComponentDelete, c)
	return errors.Join(errs...)
}

// DeleteEntity deletes every component of an entity, newest first.
func (s *Stage) DeleteEntity(id models.EntityID) error {
	e := s.entities[id]
	if e == nil {
		return nil
	}
	var errs []error
	for i := len(e.order) - 1; i >= 0; i-- {
		if i >= len(e.order) {
			continue
		}
		if err := s.DeleteComponent(e.components[e.order[i]]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// declare returns the live declaration of typ, creating it and every model
// already satisfied by the store on first use.
func (s *Stage) declare(typ *models.ModelType, m mask.Mask) (*declaration, []error) {
	if d, ok := s.decls[typ]; ok {
		return d, nil
	}
	d := &declaration{typ: typ, mask: m, models: make(map[models.EntityID]*instance)}
	s.decls[typ] = d
	for _, name := range typ.Requires {
		s.byType[name] = append(s.byType[name], d)
	}
	s.log.Debug("model declared", log.String("model", typ.Name))

	var errs []error
	for _, e := range s.orderedEntities() {
		if s.entities[e.id] != e || s.decls[typ] != d {
			continue
		}
		if _, exists := d.models[e.id]; exists || !e.mask.ContainsAll(d.mask) {
			continue
		}
		errs = append(errs, s.createModel(d, e)...)
	}
	return d, errs
}

// undeclare destroys every model of d and forgets it.
func (s *Stage) undeclare(d *declaration) []error {
	var errs []error
	for _, inst := range d.ordered() {
		if d.models[inst.model.Entity()] == inst {
			errs = append(errs, s.destroyModel(d, inst)...)
		}
	}
	delete(s.decls, d.typ)
	for _, name := range d.typ.Requires {
		list := s.byType[name]
		for i, cur := range list {
			if cur == d {
				list = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(s.byType, name)
		} else {
			s.byType[name] = list
		}
	}
	s.log.Debug("model undeclared", log.String("model", d.typ.Name))
	return errs
}

func (s *Stage) maskOf(typ *models.ModelType) (mask.Mask, error) {
	var m mask.Mask
	for _, name := range typ.Requires {
		bit, err := s.registry.Bit(name)
		if err != nil {
			return m, fmt.Errorf("model %s requires %q: %w", typ.Name, name, err)
		}
		m.Mark(bit)
	}
	return m, nil
}

func (s *Stage) createModel(d *declaration, e *entity) []error {
	components := make(map[string]*models.Component, len(d.typ.Requires))
	for _, name := range d.typ.Requires {
		components[name] = e.components[name]
	}
	m := models.NewModel(s.NewNotifier(), d.typ, e.id, components, s)
	s.seq++
	d.models[e.id] = &instance{model: m, seq: s.seq}

	var errs []error
	if d.typ.Init != nil {
		if err := d.typ.Init(m); err != nil {
			errs = append(errs, &HookError{Hook: "Init", Key: d.typ.Name, Err: err})
		}
	}
	s.Notify(EventModelCreate, m)

	for _, b := range slices.Clone(d.bindings) {
		if !m.Alive() {
			break
		}
		if err := s.bind(b, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// destroyModel forgets inst before any hook runs, so teardown happens once
// even when a hook deletes components of the same entity.
func (s *Stage) destroyModel(d *declaration, inst *instance) []error {
	m := inst.model
	if d.models[m.Entity()] != inst {
		return nil
	}
	delete(d.models, m.Entity())

	var errs []error
	var vacated []*binding
	for _, b := range slices.Clone(d.bindings) {
		if b.singular && b.current == m {
			vacated = append(vacated, b)
		}
		if err := s.unbind(b, m); err != nil {
			errs = append(errs, err)
		}
	}
	if d.typ.Dispose != nil {
		d.typ.Dispose(m)
	}
	m.Destroy()
	s.Notify(EventModelDelete, m)

	for _, b := range vacated {
		if err := s.promote(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// bind hands m to one binding. A singular binding already holding a model
// keeps it; the newcomer is ignored.
func (s *Stage) bind(b *binding, m *models.Model) error {
	if b.reg.removed {
		return nil
	}
	if b.singular {
		if b.current != nil {
			if b.current != m {
				s.log.Warn("singular binding already bound, ignoring match",
					log.String("system", b.reg.system.ID()),
					log.String("binding", b.key),
					log.String("bound", b.current.Entity().String()),
					log.String("ignored", m.Entity().String()),
				)
			}
			return nil
		}
		b.current = m
	} else {
		if _, ok := b.members[m]; ok {
			return nil
		}
		b.members[m] = struct{}{}
	}

	if b.reg.tracker != nil {
		b.reg.tracker.Track(b.key, m)
	}
	if err := b.reg.system.OnModelAdd(b.key, m); err != nil {
		return &HookError{System: b.reg.system.ID(), Hook: "OnModelAdd", Key: b.key, Err: err}
	}
	return nil
}

// unbind releases m before OnModelDelete runs, so a hook re-entering the
// stage cannot release it twice.
func (s *Stage) unbind(b *binding, m *models.Model) error {
	if b.singular {
		if b.current != m {
			return nil
		}
		b.current = nil
	} else {
		if _, ok := b.members[m]; !ok {
			return nil
		}
		delete(b.members, m)
	}

	err := b.reg.system.OnModelDelete(b.key, m)
	if b.reg.tracker != nil {
		b.reg.tracker.Untrack(b.key, m)
	}
	if err != nil {
		return &HookError{System: b.reg.system.ID(), Hook: "OnModelDelete", Key: b.key, Err: err}
	}
	return nil
}

// promote binds the oldest live match to a vacated singular binding.
func (s *Stage) promote(b *binding) error {
	if b.reg.removed || b.current != nil {
		return nil
	}
	for _, inst := range b.decl.ordered() {
		if !inst.model.Alive() {
			continue
		}
		s.log.Debug("singular binding promoted",
			log.String("system", b.reg.system.ID()),
			log.String("binding", b.key),
			log.String("entity", inst.model.Entity().String()),
		)
		return s.bind(b, inst.model)
	}
	return nil
}
