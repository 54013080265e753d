package systems

import (
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/stagehand/internal/core/models"
	"github.com/zeusync/stagehand/internal/core/watch"
)

var (
	ErrUndeclaredEvent = errors.New("event is not declared by system")
	ErrNotAttached     = errors.New("system is not attached to a stage")
)

var (
	_ System      = (*Base)(nil)
	_ Tracker     = (*Base)(nil)
	_ Attacher    = (*Base)(nil)
	_ Prioritized = (*Base)(nil)
)

// Base is the embeddable default System. It keeps singular bindings as a
// nullable field and set bindings as live ModelSets, and exposes declared
// events through a notifier handed out by the stage.
type Base struct {
	id       string
	bindings []Binding
	priority Priority
	events   map[string]struct{}

	stage    Stage
	notifier *watch.Notifier
	single   map[string]*models.Model
	sets     map[string]*ModelSet
}

func NewBase(id string, bindings ...Binding) Base {
	b := Base{
		id:       id,
		bindings: bindings,
		events:   make(map[string]struct{}),
		single:   make(map[string]*models.Model),
		sets:     make(map[string]*ModelSet),
	}
	for _, bind := range bindings {
		if !bind.Singular {
			b.sets[bind.Key] = newModelSet()
		}
	}
	return b
}

func (b *Base) ID() string             { return b.id }
func (b *Base) Bindings() []Binding    { return b.bindings }
func (b *Base) Priority() Priority     { return b.priority }
func (b *Base) SetPriority(p Priority) { b.priority = p }

func (b *Base) OnModelAdd(string, *models.Model) error    { return nil }
func (b *Base) OnModelDelete(string, *models.Model) error { return nil }
func (b *Base) Update(time.Duration) error                { return nil }
func (b *Base) Render() error                             { return nil }
func (b *Base) Dispose() error                            { return nil }

// DeclareEvents lists the events the system may emit.
func (b *Base) DeclareEvents(types ...string) {
	for _, t := range types {
		b.events[t] = struct{}{}
	}
}

func (b *Base) Attach(stage Stage) {
	b.stage = stage
	if b.notifier == nil {
		b.notifier = stage.NewNotifier()
	}
}

func (b *Base) Detach() {
	b.stage = nil
}

// Stage returns the owning stage, or nil once removed.
func (b *Base) Stage() Stage { return b.stage }

// Events returns the system notifier, nil until the system is first added
// to a stage.
func (b *Base) Events() *watch.Notifier { return b.notifier }

// Emit notifies a declared event.
func (b *Base) Emit(typ string, data any) error {
	if _, ok := b.events[typ]; !ok {
		return fmt.Errorf("%w: %s emits %q", ErrUndeclaredEvent, b.id, typ)
	}
	if b.notifier == nil {
		return fmt.Errorf("%w: %s", ErrNotAttached, b.id)
	}
	b.notifier.Notify(typ, data)
	return nil
}

func (b *Base) Track(key string, m *models.Model) {
	if set, ok := b.sets[key]; ok {
		set.add(m)
		return
	}
	b.single[key] = m
}

func (b *Base) Untrack(key string, m *models.Model) {
	if set, ok := b.sets[key]; ok {
		set.remove(m)
		return
	}
	if b.single[key] == m {
		delete(b.single, key)
	}
}

// Model returns the model bound under a singular key, or nil.
func (b *Base) Model(key string) *models.Model {
	return b.single[key]
}

// Models returns the live set bound under a set key, or nil for unknown or
// singular keys.
func (b *Base) Models(key string) *ModelSet {
	return b.sets[key]
}
