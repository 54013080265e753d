package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/stagehand/internal/core/observability/log"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestNotifier(t *testing.T) (*Notifier, *Queue, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	q := NewQueue()
	return New(q, log.NewWithCore(core)), q, logs
}

func TestImmediateHandlersRunInRegistrationOrder(t *testing.T) {
	n, q, _ := newTestNotifier(t)
	var got []string

	n.Watch(func(e Event) error {
		got = append(got, "wildcard-1")
		return nil
	})
	n.WatchType("move", Options{}, func(e Event) error {
		got = append(got, "move")
		return nil
	})
	n.Watch(func(e Event) error {
		got = append(got, "wildcard-2")
		return nil
	})
	n.WatchType("jump", Options{}, func(e Event) error {
		got = append(got, "jump")
		return nil
	})

	n.Notify("move", 1)

	// delivered before Notify returned, without draining
	assert.Equal(t, []string{"wildcard-1", "move", "wildcard-2"}, got)
	assert.Equal(t, 1, q.Len())
}

func TestDeferredWatcherSeesCoalescedBatch(t *testing.T) {
	n, q, _ := newTestNotifier(t)
	var batches []Batch
	n.WatchBatch(Options{Deferred: true}, func(b Batch) error {
		batches = append(batches, b)
		return nil
	})

	n.Notify("x", 1)
	n.Notify("x", 2)
	n.Notify("y", "a")
	assert.Empty(t, batches)
	assert.True(t, n.IsQueued("x"))

	q.Drain()

	require.Len(t, batches, 1)
	assert.Equal(t, Batch{"x": 2, "y": "a"}, batches[0])
	assert.False(t, n.IsQueued("x"))
}

// A tight mutation loop only exposes the final value per type to deferred
// watchers; intermediate values are visible to immediate watchers only.
func TestTightLoopOnlyFinalValueIsBatched(t *testing.T) {
	n, q, _ := newTestNotifier(t)
	var immediate, deferred []any
	n.WatchType("value", Options{}, func(e Event) error {
		immediate = append(immediate, e.Data)
		return nil
	})
	n.WatchType("value", Options{Deferred: true}, func(e Event) error {
		deferred = append(deferred, e.Data)
		return nil
	})

	for i := 0; i < 100; i++ {
		n.Notify("value", i)
	}
	q.Drain()

	assert.Len(t, immediate, 100)
	assert.Equal(t, []any{99}, deferred)
}

func TestFlushScheduledOncePerInstance(t *testing.T) {
	n, q, _ := newTestNotifier(t)
	other := New(q, nil)

	n.Notify("a", 1)
	n.Notify("b", 2)
	other.Notify("a", 3)
	assert.Equal(t, 2, q.Len())

	assert.Equal(t, 2, q.Drain())
	n.Notify("a", 4)
	assert.Equal(t, 1, q.Len())
}

func TestAbortRemovesQueuedDelivery(t *testing.T) {
	n, q, _ := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	called := false
	sub := n.WatchBatch(Options{Deferred: true, Ctx: ctx}, func(Batch) error {
		called = true
		return nil
	})

	n.Notify("x", 1)
	cancel()
	q.Drain()

	assert.False(t, called)
	assert.False(t, sub.IsActive())
	assert.Eventually(t, func() bool { return !n.IsWatched("x") }, time.Second, time.Millisecond)
}

func TestAbortedContextBeforeRegistration(t *testing.T) {
	n, _, _ := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	n.WatchType("x", Options{Ctx: ctx}, func(Event) error {
		called = true
		return nil
	})
	n.Notify("x", nil)

	assert.False(t, called)
}

func TestOnceRemovesAfterFirstDelivery(t *testing.T) {
	n, q, _ := newTestNotifier(t)
	count := 0
	deferredCount := 0
	n.WatchWith(Options{Once: true}, func(Event) error {
		count++
		return nil
	})
	n.WatchType("x", Options{Once: true, Deferred: true}, func(Event) error {
		deferredCount++
		return nil
	})

	n.Notify("x", 1)
	n.Notify("x", 2)
	q.Drain()
	n.Notify("x", 3)
	q.Drain()

	assert.Equal(t, 1, count)
	assert.Equal(t, 1, deferredCount)
	assert.False(t, n.IsWatched("x"))
}

func TestUnwatch(t *testing.T) {
	n, _, _ := newTestNotifier(t)
	count := 0
	sub := n.Watch(func(Event) error {
		count++
		return nil
	})

	n.Notify("x", nil)
	n.Unwatch(sub)
	n.Notify("x", nil)
	assert.Equal(t, 1, count)

	// repeated, foreign and nil removals are no-ops
	n.Unwatch(sub)
	n.Unwatch(nil)
	foreign := New(NewQueue(), nil).Watch(func(Event) error { return nil })
	n.Unwatch(foreign)
	assert.True(t, foreign.IsActive())
}

func TestHandlerFailureIsIsolatedAndLogged(t *testing.T) {
	n, _, logs := newTestNotifier(t)
	var got []string
	n.Watch(func(Event) error {
		return errors.New("first failed")
	})
	n.Watch(func(Event) error {
		panic("second panicked")
	})
	n.Watch(func(Event) error {
		got = append(got, "third")
		return nil
	})

	assert.NotPanics(t, func() { n.Notify("x", nil) })
	assert.Equal(t, []string{"third"}, got)

	failures := logs.FilterMessage("watch handler failed").All()
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0].ContextMap()["error"], "first failed")
	assert.Contains(t, failures[1].ContextMap()["error"], "second panicked")
}

func TestHandlerErrorUnwraps(t *testing.T) {
	cause := errors.New("cause")
	err := error(&HandlerError{Event: "x", Watcher: "w", Err: cause})
	assert.ErrorIs(t, err, cause)

	var he *HandlerError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "x", he.Event)
}

func TestWaitForResolvesOnNextDelivery(t *testing.T) {
	n, _, _ := newTestNotifier(t)
	ch := n.WaitFor(context.Background(), "ready")

	n.Notify("other", 1)
	n.Notify("ready", 42)
	n.Notify("ready", 43)

	select {
	case r := <-ch:
		require.NoError(t, r.Err)
		assert.Equal(t, 42, r.Data)
	case <-time.After(time.Second):
		t.Fatal("WaitFor did not resolve")
	}
	assert.False(t, n.IsWatched("ready"))
}

func TestWaitForRejectsOnAbort(t *testing.T) {
	n, _, _ := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	ch := n.WaitFor(ctx, "ready")
	cancel()

	select {
	case r := <-ch:
		assert.ErrorIs(t, r.Err, ErrAborted)
		assert.ErrorIs(t, r.Err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("WaitFor hung after abort")
	}

	n.Notify("ready", 1)
	assert.Empty(t, ch)
}

// afterFuncCtx counts cleanups registered and released through context.AfterFunc.
type afterFuncCtx struct {
	context.Context
	registered int
	released   int
}

func (c *afterFuncCtx) AfterFunc(func()) func() bool {
	c.registered++
	return func() bool {
		c.released++
		return true
	}
}

func TestWaitForReleasesContextOnDelivery(t *testing.T) {
	n, _, _ := newTestNotifier(t)
	ctx := &afterFuncCtx{Context: context.Background()}

	for i := range 3 {
		ch := n.WaitFor(ctx, "ready")
		n.Notify("ready", i)
		r := <-ch
		require.NoError(t, r.Err)
		assert.Equal(t, i, r.Data)
	}
	assert.Equal(t, 3, ctx.registered)
	assert.Equal(t, 3, ctx.released)
}

func TestIsWatched(t *testing.T) {
	n, _, _ := newTestNotifier(t)
	assert.False(t, n.IsWatched("x"))

	sub := n.WatchType("x", Options{}, func(Event) error { return nil })
	assert.True(t, n.IsWatched("x"))
	assert.False(t, n.IsWatched("y"))

	sub.Cancel()
	assert.False(t, n.IsWatched("x"))

	n.Watch(func(Event) error { return nil })
	assert.True(t, n.IsWatched("y"))
}

func TestNotifyFromHandlerIsDelivered(t *testing.T) {
	n, q, _ := newTestNotifier(t)
	var got []any
	n.WatchType("ping", Options{}, func(e Event) error {
		n.Notify("pong", e.Data)
		return nil
	})
	n.WatchType("pong", Options{Deferred: true}, func(e Event) error {
		got = append(got, e.Data)
		return nil
	})

	n.Notify("ping", 7)
	q.Drain()

	assert.Equal(t, []any{7}, got)
}
