// Package tasks runs blocking work on a bounded worker pool and hands the
// results back on a single completion goroutine.
package tasks

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/DeBrosOfficial/subbridge/pkg/errors"
	"github.com/DeBrosOfficial/subbridge/pkg/queue"
)

// DefaultWorkers bounds concurrently running tasks when no size is given.
const DefaultWorkers = 64

// Runner executes tasks on at most Workers goroutines. Completion
// callbacks run one at a time, in completion order, on the runner's
// completion loop; they must not block.
type Runner struct {
	logger  *zap.Logger
	workers int64
	sem     *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders Schedule against Close so no task starts after Close waits.
	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup

	completions *queue.Queue[func()]
	loopDone    chan struct{}
}

// NewRunner starts a runner with the given number of workers.
func NewRunner(workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		logger:      logger,
		workers:     int64(workers),
		sem:         semaphore.NewWeighted(int64(workers)),
		ctx:         ctx,
		cancel:      cancel,
		completions: queue.New[func()]("completion queue"),
		loopDone:    make(chan struct{}),
	}
	go r.completionLoop()
	return r
}

// Workers returns the pool size.
func (r *Runner) Workers() int {
	return int(r.workers)
}

func (r *Runner) completionLoop() {
	defer close(r.loopDone)
	for {
		fn, err := r.completions.Pop(context.Background())
		if err != nil {
			return
		}
		r.invoke(fn)
	}
}

// invoke runs a completion callback, keeping the loop alive if it panics.
func (r *Runner) invoke(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic in completion callback", zap.Any("panic", rec))
		}
	}()
	fn()
}

// begin registers a task unless the runner is closed.
func (r *Runner) begin() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	r.pending.Add(1)
	return true
}

// Close cancels running tasks, waits for them and drains pending
// completions. Tasks scheduled afterwards fail with a ChannelClosedError.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.loopDone
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.pending.Wait()
	r.completions.Close()
	<-r.loopDone
}

// Schedule runs fn on a worker and passes its result to cb on the
// completion loop. It never blocks the caller. cb may be nil; the returned
// Future observes the same result. A panic in fn is reported as an
// InternalError.
//
// Once the runner is closed there is no completion loop left: cb is then
// called with a ChannelClosedError on the caller's goroutine before
// Schedule returns.
func Schedule[T any](r *Runner, name string, fn func(ctx context.Context) (T, error), cb func(T, error)) *Future[T] {
	return spawn(r, name, true, fn, cb)
}

// Wait is Schedule for tasks that only wait on a queue or a context. They
// run outside the worker bound so any number of waiters can never starve
// the workers that would wake them. Results still go through the
// completion loop, and Close still cancels and waits for them.
func Wait[T any](r *Runner, name string, fn func(ctx context.Context) (T, error), cb func(T, error)) *Future[T] {
	return spawn(r, name, false, fn, cb)
}

func spawn[T any](r *Runner, name string, bounded bool, fn func(ctx context.Context) (T, error), cb func(T, error)) *Future[T] {
	f := newFuture[T]()

	if !r.begin() {
		var zero T
		err := errors.NewChannelClosedError("task runner")
		f.complete(zero, err)
		if cb != nil {
			r.invoke(func() { cb(zero, err) })
		}
		return f
	}

	go func() {
		defer r.pending.Done()

		var v T
		var err error
		switch {
		case !bounded:
			v, err = run(r.ctx, name, fn)
		case r.sem.Acquire(r.ctx, 1) == nil:
			v, err = run(r.ctx, name, fn)
			r.sem.Release(1)
		default:
			err = errors.NewChannelClosedError("task runner")
		}

		if err != nil {
			r.logger.Debug("Task failed", zap.String("task", name), zap.Error(err))
		}
		f.complete(v, err)
		if cb != nil {
			if pushErr := r.completions.Push(func() { cb(v, err) }); pushErr != nil {
				r.logger.Warn("Dropped completion", zap.String("task", name), zap.Error(pushErr))
			}
		}
	}()
	return f
}

// run calls fn, converting a panic into an InternalError.
func run[T any](ctx context.Context, name string, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			v = zero
			err = errors.FromPanic(name, rec)
		}
	}()
	return fn(ctx)
}
