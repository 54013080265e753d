package watch

import (
	"context"
	"errors"
	"fmt"
)

// ErrAborted is returned when a wait is cancelled through its context.
var ErrAborted = errors.New("watch: aborted")

// HandlerError wraps a failure raised by a handler during delivery. It is
// logged at the dispatch site and never returned to the notifier's caller.
type HandlerError struct {
	Event   string
	Watcher string
	Err     error
	Panic   any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("watch: handler %s panicked on %q: %v", e.Watcher, e.Event, e.Panic)
	}
	return fmt.Sprintf("watch: handler %s failed on %q: %v", e.Watcher, e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func abortError(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
}
