package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueDrainRunsNestedTasks(t *testing.T) {
	q := NewQueue()
	var order []int
	q.Schedule(func() {
		order = append(order, 1)
		q.Schedule(func() { order = append(order, 3) })
	})
	q.Schedule(func() { order = append(order, 2) })

	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Zero(t, q.Len())
	assert.Zero(t, q.Drain())
}
