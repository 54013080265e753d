package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is a long-running unit of work stopped through its context.
type Task func(ctx context.Context) error

// Run starts every task in its own goroutine and waits for all of them.
// The first failure cancels the context shared by the others and is returned.
func Run(ctx context.Context, tasks ...Task) error {
	group, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		if task == nil {
			continue
		}
		group.Go(func() error {
			return task(gctx)
		})
	}
	return group.Wait()
}
