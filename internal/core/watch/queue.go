package watch

import "sync"

// Queue is the microtask checkpoint shared by every Notifier of one runtime.
// Notifiers schedule their batch flush here; the owner drains it between
// simulation steps. Tasks run in FIFO order on the draining goroutine.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
}

func NewQueue() *Queue {
	return &Queue{tasks: make([]func(), 0, 64)}
}

// Schedule appends a task to run on the next Drain.
func (q *Queue) Schedule(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Drain runs queued tasks until the queue is empty, including tasks scheduled
// by the tasks themselves. It returns the number of tasks run.
func (q *Queue) Drain() int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return ran
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task()
		ran++
	}
}

// Len reports the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
