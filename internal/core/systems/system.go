package systems

import (
	"time"

	"github.com/zeusync/stagehand/internal/core/models"
	"github.com/zeusync/stagehand/internal/core/watch"
)

// System is a unit of per-frame behaviour. It declares the models it needs
// through Bindings and reacts as its stage creates and destroys them.
type System interface {
	// ID is unique within a stage.
	ID() string
	// Bindings is read once, when the system is added to a stage.
	Bindings() []Binding

	OnModelAdd(key string, m *models.Model) error
	OnModelDelete(key string, m *models.Model) error

	// Update advances the system by one fixed step.
	Update(step time.Duration) error
	Render() error
	// Dispose runs once after the system is removed from its stage.
	Dispose() error
}

// Binding requests every model of one type, exposed under Key.
type Binding struct {
	Key   string
	Model *models.ModelType
	// Singular bindings track at most one model: the first match wins and
	// later matches are ignored until it is deleted.
	Singular bool
}

// Single binds at most one model of typ under key.
func Single(key string, typ *models.ModelType) Binding {
	return Binding{Key: key, Model: typ, Singular: true}
}

// Set binds every model of typ under key.
func Set(key string, typ *models.ModelType) Binding {
	return Binding{Key: key, Model: typ}
}

// Priority orders lifecycle hooks and per-frame calls across systems of one
// stage. Higher runs first; equal priorities keep registration order.
type Priority int16

const (
	PriorityLowest  Priority = -200
	PriorityLow     Priority = -100
	PriorityNormal  Priority = 0
	PriorityHigh    Priority = 100
	PriorityHighest Priority = 200
)

// Prioritized is implemented by systems that declare a Priority.
type Prioritized interface {
	Priority() Priority
}

// Tracker is implemented by systems that want the stage to maintain their
// bound models. Track runs before OnModelAdd, Untrack after OnModelDelete.
type Tracker interface {
	Track(key string, m *models.Model)
	Untrack(key string, m *models.Model)
}

// Stage is the part of the owning stage visible to systems.
type Stage interface {
	ID() string
	EntityModel(entity models.EntityID, typ *models.ModelType) (*models.Model, bool)
	Component(entity models.EntityID, typ string) (*models.Component, bool)
	NewNotifier() *watch.Notifier
}

// Attacher is implemented by systems that need their stage. Attach runs
// before any model is bound; Detach after the last model is released.
type Attacher interface {
	Attach(stage Stage)
	Detach()
}
