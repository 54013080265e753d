// Package stage implements the reconciliation engine of one simulation
// partition: the component store, the systems registered on it and the
// models joining the two.
package stage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/zeusync/stagehand/internal/core/models"
	"github.com/zeusync/stagehand/internal/core/observability/log"
	"github.com/zeusync/stagehand/internal/core/schema/registry"
	"github.com/zeusync/stagehand/internal/core/systems"
	"github.com/zeusync/stagehand/internal/core/watch"
)

// Events emitted on the stage notifier.
const (
	EventComponentCreate = "component.create"
	EventComponentDelete = "component.delete"
	EventModelCreate     = "model.create"
	EventModelDelete     = "model.delete"
	EventSystemAdd       = "system.add"
	EventSystemDelete    = "system.delete"
)

var _ systems.Stage = (*Stage)(nil)
var _ models.Lookup = (*Stage)(nil)

// Config carries the collaborators of a Stage. Zero fields get a private
// default: an empty registry, a fresh queue and a no-op logger.
type Config struct {
	Registry *registry.Registry
	Queue    *watch.Queue
	Logger   log.Log
}

// ComponentSpec describes a component to create.
type ComponentSpec struct {
	Entity models.EntityID
	Type   string
	Value  any
}

// Stats is a point-in-time summary of the stage contents.
type Stats struct {
	Entities     int `json:"entities"`
	Components   int `json:"components"`
	Models       int `json:"models"`
	Declarations int `json:"declarations"`
	Systems      int `json:"systems"`
}

// Stage owns the component store and the systems of one partition. A Stage
// is not safe for concurrent use; every call must come from the goroutine
// driving it.
type Stage struct {
	*watch.Notifier

	id       string
	registry *registry.Registry
	queue    *watch.Queue
	log      log.Log

	entities map[models.EntityID]*entity
	decls    map[*models.ModelType]*declaration
	byType   map[string][]*declaration
	systems  []*registration
	byID     map[string]*registration

	seq        uint64
	nextEntity uint64
}

func New(id string, cfg Config) *Stage {
	if cfg.Registry == nil {
		cfg.Registry = registry.New()
	}
	if cfg.Queue == nil {
		cfg.Queue = watch.NewQueue()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	logger := cfg.Logger.With(log.String("stage", id))
	return &Stage{
		Notifier: watch.New(cfg.Queue, logger),
		id:       id,
		registry: cfg.Registry,
		queue:    cfg.Queue,
		log:      logger,
		entities: make(map[models.EntityID]*entity),
		decls:    make(map[*models.ModelType]*declaration),
		byType:   make(map[string][]*declaration),
		byID:     make(map[string]*registration),
	}
}

func (s *Stage) ID() string                   { return s.id }
func (s *Stage) Queue() *watch.Queue          { return s.queue }
func (s *Stage) Registry() *registry.Registry { return s.registry }

// NewNotifier returns a notifier sharing the stage queue and logger.
func (s *Stage) NewNotifier() *watch.Notifier {
	return watch.New(s.queue, s.log)
}

// NewEntity allocates a fresh sequential entity id.
func (s *Stage) NewEntity() models.EntityID {
	for {
		s.nextEntity++
		id := models.EntityID(s.nextEntity)
		if _, taken := s.entities[id]; !taken {
			return id
		}
	}
}

// EntityFor derives a stable entity id from a name, scoped to the stage id.
func (s *Stage) EntityFor(name string) models.EntityID {
	return models.EntityID(xxhash.Sum64String(s.id + "/" + name))
}

func (s *Stage) HasEntity(id models.EntityID) bool {
	_, ok := s.entities[id]
	return ok
}

// Entities returns every entity owning at least one component, oldest first.
func (s *Stage) Entities() []models.EntityID {
	list := s.orderedEntities()
	out := make([]models.EntityID, len(list))
	for i, e := range list {
		out[i] = e.id
	}
	return out
}

func (s *Stage) Component(id models.EntityID, typ string) (*models.Component, bool) {
	e := s.entities[id]
	if e == nil {
		return nil, false
	}
	c, ok := e.components[typ]
	return c, ok
}

// Components returns the components of an entity in creation order.
func (s *Stage) Components(id models.EntityID) []*models.Component {
	e := s.entities[id]
	if e == nil {
		return nil
	}
	out := make([]*models.Component, 0, len(e.order))
	for _, typ := range e.order {
		out = append(out, e.components[typ])
	}
	return out
}

// EntityModel returns the live model of typ for an entity.
func (s *Stage) EntityModel(id models.EntityID, typ *models.ModelType) (*models.Model, bool) {
	d := s.decls[typ]
	if d == nil {
		return nil, false
	}
	inst, ok := d.models[id]
	if !ok {
		return nil, false
	}
	return inst.model, true
}

// RequireModel is EntityModel reporting absence as a MissingReferenceError.
func (s *Stage) RequireModel(id models.EntityID, typ *models.ModelType) (*models.Model, error) {
	if m, ok := s.EntityModel(id, typ); ok {
		return m, nil
	}
	name := "<nil>"
	if typ != nil {
		name = typ.Name
	}
	return nil, &MissingReferenceError{Entity: id, Model: name}
}

// WhenModel calls fn with the model of typ for an entity, now if it exists or
// once it is created. The returned subscription is nil when fn already ran;
// otherwise cancelling it or ctx drops the pending call.
//
// Only models of declared types are ever created; see DeclareModel.
func (s *Stage) WhenModel(ctx context.Context, id models.EntityID, typ *models.ModelType, fn func(*models.Model)) watch.Subscription {
	if m, ok := s.EntityModel(id, typ); ok {
		fn(m)
		return nil
	}
	var sub watch.Subscription
	sub = s.WatchType(EventModelCreate, watch.Options{Ctx: ctx}, func(e watch.Event) error {
		m, ok := e.Data.(*models.Model)
		if !ok || m.Entity() != id || m.Type() != typ {
			return nil
		}
		sub.Cancel()
		fn(m)
		return nil
	})
	return sub
}

// DeclareModel keeps models of typ maintained even when no system binds it,
// so EntityModel and WhenModel can resolve them.
func (s *Stage) DeclareModel(typ *models.ModelType) error {
	if err := typ.Validate(); err != nil {
		return err
	}
	m, err := s.maskOf(typ)
	if err != nil {
		return fmt.Errorf("declare %s: %w", typ.Name, err)
	}
	d, errs := s.declare(typ, m)
	d.pinned = true
	return errors.Join(errs...)
}

// SystemIDs returns the registered systems in execution order.
func (s *Stage) SystemIDs() []string {
	out := make([]string, len(s.systems))
	for i, reg := range s.systems {
		out[i] = reg.system.ID()
	}
	return out
}

func (s *Stage) System(id string) (systems.System, bool) {
	reg, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return reg.system, true
}

func (s *Stage) Stats() Stats {
	st := Stats{
		Entities:     len(s.entities),
		Declarations: len(s.decls),
		Systems:      len(s.systems),
	}
	for _, e := range s.entities {
		st.Components += len(e.components)
	}
	for _, d := range s.decls {
		st.Models += len(d.models)
	}
	return st
}

// Update advances every system by one fixed step, in execution order. The
// first failure stops the step and is returned.
func (s *Stage) Update(step time.Duration) error {
	for _, reg := range s.snapshotSystems() {
		if reg.removed {
			continue
		}
		if err := reg.system.Update(step); err != nil {
			return fmt.Errorf("stage %s: system %s update: %w", s.id, reg.system.ID(), err)
		}
	}
	return nil
}

// Render calls every system render hook once, in execution order.
func (s *Stage) Render() error {
	for _, reg := range s.snapshotSystems() {
		if reg.removed {
			continue
		}
		if err := reg.system.Render(); err != nil {
			return fmt.Errorf("stage %s: system %s render: %w", s.id, reg.system.ID(), err)
		}
	}
	return nil
}

func (s *Stage) snapshotSystems() []*registration {
	out := make([]*registration, len(s.systems))
	copy(out, s.systems)
	return out
}

func (s *Stage) orderedEntities() []*entity {
	out := make([]*entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
