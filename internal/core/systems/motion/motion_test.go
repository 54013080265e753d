package motion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/stagehand/internal/core/models"
	"github.com/zeusync/stagehand/internal/core/schema/registry"
	"github.com/zeusync/stagehand/internal/core/stage"
	"github.com/zeusync/stagehand/internal/core/watch"
)

func TestVec2(t *testing.T) {
	v := Vec2{X: 3, Y: 4}
	assert.Equal(t, 5.0, v.Length())
	assert.Equal(t, Vec2{X: 4, Y: 6}, v.Add(Vec2{X: 1, Y: 2}))
	assert.Equal(t, Vec2{X: 1.5, Y: 2}, v.Scale(0.5))
	assert.Equal(t, 5.0, Vec2{}.Distance(v))
}

func TestSystemIntegratesVelocity(t *testing.T) {
	s := stage.New("motion", stage.Config{Registry: registry.New().MustRegister(Schemas()...)})
	sys := New("motion")
	require.NoError(t, s.AddSystem(sys))

	var steps []any
	sys.Events().WatchType(EventStep, watch.Options{}, func(e watch.Event) error {
		steps = append(steps, e.Data)
		return nil
	})

	moving := s.NewEntity()
	idle := s.NewEntity()
	for _, spec := range []stage.ComponentSpec{
		{Entity: moving, Type: TypePosition, Value: Vec2{X: 1}},
		{Entity: moving, Type: TypeVelocity, Value: map[string]any{"x": 2.0, "y": -1.0}},
		{Entity: idle, Type: TypePosition},
		{Entity: idle, Type: TypeVelocity},
	} {
		_, err := s.CreateComponent(spec)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, sys.Models("bodies").Len())

	require.NoError(t, s.Update(500*time.Millisecond))

	m, err := s.RequireModel(moving, Body)
	require.NoError(t, err)
	pos, ok := models.Get[Vec2](m, TypePosition)
	require.True(t, ok)
	assert.Equal(t, Vec2{X: 2, Y: -0.5}, pos)
	assert.Equal(t, []any{1}, steps)
}
