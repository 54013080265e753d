package stage

import (
	"errors"
	"fmt"
	"sort"

	"github.com/TheBitDrifter/mask"
	"github.com/zeusync/stagehand/internal/core/models"
	"github.com/zeusync/stagehand/internal/core/observability/log"
	"github.com/zeusync/stagehand/internal/core/systems"
)

// AddSystem registers sys and binds every model that already matches its
// bindings. Validation happens before anything is registered, so a rejected
// system leaves the stage untouched. Hook failures are joined into the
// returned error and do not undo the registration.
func (s *Stage) AddSystem(sys systems.System) error {
	if sys == nil {
		return ErrNilSystem
	}
	id := sys.ID()
	if _, dup := s.byID[id]; dup {
		return &DuplicateBindingError{Stage: s.id, System: id}
	}

	bindings := sys.Bindings()
	masks := make([]mask.Mask, len(bindings))
	keys := make(map[string]struct{}, len(bindings))
	for i, b := range bindings {
		if b.Key == "" {
			return fmt.Errorf("%w: system %q has a binding without key", ErrInvalidBinding, id)
		}
		if _, dup := keys[b.Key]; dup {
			return &DuplicateBindingError{Stage: s.id, System: id, Key: b.Key}
		}
		keys[b.Key] = struct{}{}
		if err := b.Model.Validate(); err != nil {
			return fmt.Errorf("system %q binding %q: %w", id, b.Key, err)
		}
		m, err := s.maskOf(b.Model)
		if err != nil {
			return fmt.Errorf("system %q binding %q: %w", id, b.Key, err)
		}
		masks[i] = m
	}

	s.seq++
	reg := &registration{system: sys, seq: s.seq}
	if p, ok := sys.(systems.Prioritized); ok {
		reg.priority = p.Priority()
	}
	reg.tracker, _ = sys.(systems.Tracker)
	i := sort.Search(len(s.systems), func(i int) bool { return reg.before(s.systems[i]) })
	s.systems = append(s.systems, nil)
	copy(s.systems[i+1:], s.systems[i:])
	s.systems[i] = reg
	s.byID[id] = reg

	if a, ok := sys.(systems.Attacher); ok {
		a.Attach(s)
	}
	s.log.Debug("system added", log.String("system", id), log.Int("priority", int(reg.priority)))

	var errs []error
	for i, b := range bindings {
		d, derrs := s.declare(b.Model, masks[i])
		errs = append(errs, derrs...)
		bd := &binding{reg: reg, key: b.Key, singular: b.Singular, decl: d}
		if !b.Singular {
			bd.members = make(map[*models.Model]struct{})
		}
		reg.bindings = append(reg.bindings, bd)
		d.attach(bd)

		for _, inst := range d.ordered() {
			if reg.removed {
				break
			}
			if d.models[inst.model.Entity()] != inst {
				continue
			}
			if err := s.bind(bd, inst.model); err != nil {
				errs = append(errs, err)
			}
		}
	}

	s.Notify(EventSystemAdd, sys)
	return errors.Join(errs...)
}

// DeleteSystem releases every model bound to sys, unregisters it and disposes
// it. No hook of sys runs afterwards.
func (s *Stage) DeleteSystem(sys systems.System) error {
	if sys == nil {
		return ErrNilSystem
	}
	reg := s.byID[sys.ID()]
	if reg == nil || reg.system != sys {
		return fmt.Errorf("%w: %s", ErrSystemNotFound, sys.ID())
	}
	reg.removed = true

	var errs []error
	for _, b := range reg.bindings {
		for _, m := range b.bound() {
			if err := s.unbind(b, m); err != nil {
				errs = append(errs, err)
			}
		}
	}

	delete(s.byID, sys.ID())
	for i, cur := range s.systems {
		if cur == reg {
			s.systems = append(s.systems[:i], s.systems[i+1:]...)
			break
		}
	}
	for _, b := range reg.bindings {
		d := b.decl
		d.detach(b)
		if len(d.bindings) == 0 && !d.pinned && s.decls[d.typ] == d {
			errs = append(errs, s.undeclare(d)...)
		}
	}

	if a, ok := sys.(systems.Attacher); ok {
		a.Detach()
	}
	if err := sys.Dispose(); err != nil {
		errs = append(errs, &HookError{System: sys.ID(), Hook: "Dispose", Err: err})
	}
	s.log.Debug("system deleted", log.String("system", sys.ID()))
	s.Notify(EventSystemDelete, sys)
	return errors.Join(errs...)
}
