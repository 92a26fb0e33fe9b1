// Package pool provides the shared worker pool used to fan out provider
// lookups. Every resolver submits to the same pool so that the number of
// in-flight requests against the provider stays bounded.
package pool

import (
	"context"
	"log/slog"

	"github.com/alitto/pond/v2"
)

type (
	// PoolOpts contains configuration options for creating a new Pool.
	PoolOpts struct {
		Logg        *slog.Logger // Structured logger
		WorkerCount int          // Number of worker goroutines
	}

	// Pool manages a worker pool for concurrent provider lookups.
	Pool struct {
		logg       *slog.Logger
		workerPool pond.Pool
	}
)

// New creates a new Pool instance with the specified number of workers.
func New(o PoolOpts) *Pool {
	return &Pool{
		logg: o.Logg,
		workerPool: pond.NewPool(
			o.WorkerCount,
		),
	}
}

// Stop gracefully stops the worker pool, waiting for all in-flight tasks to complete.
func (p *Pool) Stop() {
	p.workerPool.StopAndWait()
}

// Go submits a task and returns a handle the caller can wait on.
func (p *Pool) Go(task func()) pond.Task {
	return p.workerPool.Submit(task)
}

// Indexed runs fn for every index in [0, n) on the pool and waits for all of
// them. The first error cancels the context handed to the remaining tasks
// and is returned. Callers write results to their own index so completion
// order never leaks into the output.
func (p *Pool) Indexed(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}

	groupCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	group := p.workerPool.NewGroup()
	for i := 0; i < n; i++ {
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			if err := fn(groupCtx, i); err != nil {
				cancel(err)
				return err
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		// The first failing task is the cause; later ones only saw the cancellation.
		if cause := context.Cause(groupCtx); cause != nil && ctx.Err() == nil {
			err = cause
		}
		p.logg.Debug("indexed task group failed", "tasks", n, "error", err)
		return err
	}

	return nil
}

// Size returns the number of tasks currently waiting in the queue.
func (p *Pool) Size() uint64 {
	return p.workerPool.WaitingTasks()
}

// ActiveWorkers returns the number of workers currently processing tasks.
func (p *Pool) ActiveWorkers() int64 {
	return p.workerPool.RunningWorkers()
}
