package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/stagehand/internal/core/watch"
)

type vec struct{ X, Y float64 }

func newComponent(q *watch.Queue, entity EntityID, typ string, value any) *Component {
	return NewComponent(watch.New(q, nil), entity, typ, value, nil)
}

func TestComponentSetNotifies(t *testing.T) {
	q := watch.NewQueue()
	c := newComponent(q, 1, "position", vec{})
	var got []any
	c.WatchType(EventChange, watch.Options{}, func(e watch.Event) error {
		got = append(got, e.Data)
		return nil
	})

	require.NoError(t, c.Set(vec{X: 1}))
	assert.Equal(t, []any{vec{X: 1}}, got)

	v, ok := ValueAs[vec](c)
	require.True(t, ok)
	assert.Equal(t, 1.0, v.X)
}

func TestComponentSetValidates(t *testing.T) {
	q := watch.NewQueue()
	bad := errors.New("negative")
	c := NewComponent(watch.New(q, nil), 1, "hp", 10, func(v any) (any, error) {
		if v.(int) < 0 {
			return nil, bad
		}
		return v, nil
	})

	assert.ErrorIs(t, c.Set(-1), bad)
	assert.Equal(t, 10, c.Value())
	assert.False(t, c.IsQueued(EventChange))
}

func TestDetachedComponentRejectsSet(t *testing.T) {
	q := watch.NewQueue()
	c := newComponent(q, 1, "hp", 10)
	deleted := false
	c.WatchType(EventDelete, watch.Options{}, func(watch.Event) error {
		deleted = true
		return nil
	})

	c.Detach()
	c.Detach()

	assert.True(t, deleted)
	assert.False(t, c.Attached())
	assert.ErrorIs(t, c.Set(1), ErrDetached)
}

func TestModelTypeValidate(t *testing.T) {
	assert.NoError(t, NewModelType("body", "position", "velocity").Validate())
	assert.ErrorIs(t, NewModelType("empty").Validate(), ErrInvalidModelType)
	assert.ErrorIs(t, NewModelType("dup", "a", "a").Validate(), ErrInvalidModelType)

	var nilType *ModelType
	assert.ErrorIs(t, nilType.Validate(), ErrInvalidModelType)
}

func TestModelForwardsComponentChanges(t *testing.T) {
	q := watch.NewQueue()
	typ := NewModelType("body", "position", "velocity")
	pos := newComponent(q, 7, "position", vec{})
	vel := newComponent(q, 7, "velocity", vec{X: 2})
	m := NewModel(watch.New(q, nil), typ, 7, map[string]*Component{"position": pos, "velocity": vel}, nil)

	var batches []watch.Batch
	m.WatchBatch(watch.Options{}, func(b watch.Batch) error {
		batches = append(batches, b)
		return nil
	})

	require.NoError(t, m.Set("position", vec{X: 1}))
	require.NoError(t, pos.Set(vec{X: 5}))
	q.Drain()

	require.Len(t, batches, 1)
	assert.Equal(t, vec{X: 5}, batches[0]["position"])
	assert.Equal(t, []*Component{pos, vel}, m.Components())

	v, ok := Get[vec](m, "velocity")
	require.True(t, ok)
	assert.Equal(t, 2.0, v.X)

	assert.ErrorIs(t, m.Set("mass", 1), ErrNotRequired)
}

func TestModelDestroyStopsForwarding(t *testing.T) {
	q := watch.NewQueue()
	typ := NewModelType("body", "position")
	pos := newComponent(q, 7, "position", vec{})
	m := NewModel(watch.New(q, nil), typ, 7, map[string]*Component{"position": pos}, nil)

	var events []string
	m.Watch(func(e watch.Event) error {
		events = append(events, e.Type)
		return nil
	})

	m.Destroy()
	require.NoError(t, pos.Set(vec{X: 1}))

	assert.Equal(t, []string{EventDelete}, events)
	assert.False(t, m.Alive())
	assert.False(t, pos.IsWatched(EventChange))
}

type lookupFunc func(EntityID, *ModelType) (*Model, bool)

func (f lookupFunc) EntityModel(e EntityID, t *ModelType) (*Model, bool) { return f(e, t) }

func TestModelSibling(t *testing.T) {
	q := watch.NewQueue()
	render := NewModelType("render", "mesh")
	scene := NewModelType("scene", "transform")
	mesh := newComponent(q, 3, "mesh", nil)
	transform := newComponent(q, 3, "transform", nil)

	sceneModel := NewModel(watch.New(q, nil), scene, 3, map[string]*Component{"transform": transform}, nil)
	lookup := lookupFunc(func(e EntityID, typ *ModelType) (*Model, bool) {
		if e == 3 && typ == scene {
			return sceneModel, true
		}
		return nil, false
	})
	renderModel := NewModel(watch.New(q, nil), render, 3, map[string]*Component{"mesh": mesh}, lookup)

	got, ok := renderModel.Sibling(scene)
	require.True(t, ok)
	assert.Same(t, sceneModel, got)

	_, ok = sceneModel.Sibling(render)
	assert.False(t, ok)
}
