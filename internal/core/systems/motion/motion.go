// Package motion integrates velocity into position on every fixed step. It is
// the smallest useful System and doubles as the demo workload of the CLI.
package motion

import (
	"time"

	"github.com/zeusync/stagehand/internal/core/models"
	"github.com/zeusync/stagehand/internal/core/schema/registry"
	"github.com/zeusync/stagehand/internal/core/systems"
)

const (
	TypePosition = "position"
	TypeVelocity = "velocity"

	// EventStep is emitted after each update with the number of bodies moved.
	EventStep = "motion.step"
)

// Body is every entity owning both a position and a velocity.
var Body = models.NewModelType("body", TypePosition, TypeVelocity)

// Schemas returns the component types this package relies on.
func Schemas() []registry.TypeSchema {
	return []registry.TypeSchema{
		registry.NewTyped(TypePosition, Vec2{}),
		registry.NewTyped(TypeVelocity, Vec2{}),
	}
}

type System struct {
	systems.Base
}

func New(id string) *System {
	s := &System{Base: systems.NewBase(id, systems.Set("bodies", Body))}
	s.DeclareEvents(EventStep)
	return s
}

func (s *System) Update(step time.Duration) error {
	dt := step.Seconds()
	moved := 0
	for body := range s.Models("bodies").All() {
		pos, _ := models.Get[Vec2](body, TypePosition)
		vel, _ := models.Get[Vec2](body, TypeVelocity)
		if vel == (Vec2{}) {
			continue
		}
		if err := body.Set(TypePosition, pos.Add(vel.Scale(dt))); err != nil {
			return err
		}
		moved++
	}
	return s.Emit(EventStep, moved)
}
