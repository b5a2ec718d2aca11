package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Job is a unit of work run on a loop. Its context identifies the loop
// (see On) and is canceled when the loop is stopped by its context.
type Job func(ctx context.Context)

// ErrStopped is returned when work is handed to a stopped loop.
var ErrStopped = errors.New("loop stopped")

type loopKey struct{}

// Loop runs jobs one at a time, in post order, on a single goroutine.
// Everything touched only from its jobs needs no further locking.
type Loop struct {
	name  string
	queue *Queue[Job]

	startOnce sync.Once
	done      chan struct{}
}

// New creates a loop. Nothing runs until Start or Run.
func New(name string) *Loop {
	return &Loop{
		name:  name,
		queue: NewQueue[Job](),
		done:  make(chan struct{}),
	}
}

// Start runs the loop on a new goroutine.
func (l *Loop) Start(ctx context.Context) *Loop {
	if !l.claim() {
		slog.Warn("loop already running", "loop", l.name)
		return l
	}
	go func() {
		if err := l.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("loop stopped", "loop", l.name, "error", err)
		}
	}()
	return l
}

// Run processes jobs on the calling goroutine until Stop drains the queue
// or ctx is canceled. A loop runs at most once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.claim() {
		return fmt.Errorf("loop %s: already running", l.name)
	}
	return l.run(ctx)
}

func (l *Loop) claim() bool {
	claimed := false
	l.startOnce.Do(func() { claimed = true })
	return claimed
}

func (l *Loop) run(ctx context.Context) error {
	defer close(l.done)

	jobCtx := context.WithValue(ctx, loopKey{}, l)
	slog.Debug("loop starting", "loop", l.name)
	for {
		if job, ok := l.queue.TryDequeue(); ok {
			l.exec(jobCtx, job)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("loop stopping: context cancelled", "loop", l.name)
			l.queue.Close()
			return ctx.Err()
		case <-l.queue.Wait():
			if l.queue.Drained() {
				slog.Debug("loop stopping: queue closed", "loop", l.name)
				return nil
			}
		}
	}
}

func (l *Loop) exec(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("loop job panicked", "loop", l.name, "panic", r)
		}
	}()
	job(ctx)
}

// Name returns the loop's name.
func (l *Loop) Name() string { return l.name }

// Post queues fn. Returns false once the loop is stopping.
func (l *Loop) Post(fn func(ctx context.Context)) bool {
	return l.queue.Enqueue(fn)
}

// Dispatch runs fn synchronously when ctx is already on this loop, and
// posts it otherwise.
func (l *Loop) Dispatch(ctx context.Context, fn func(ctx context.Context)) {
	if On(ctx, l) {
		fn(ctx)
		return
	}
	if !l.Post(fn) {
		slog.Debug("dispatch to stopped loop dropped", "loop", l.name)
	}
}

// Call runs fn on the loop and waits for its result. From a job already
// on the loop it runs inline.
func (l *Loop) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if On(ctx, l) {
		return fn(ctx)
	}
	errCh := make(chan error, 1)
	posted := l.Post(func(jobCtx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("loop %s: panic: %v", l.name, r)
			}
		}()
		errCh <- fn(jobCtx)
	})
	if !posted {
		return ErrStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The job may have completed just before the loop exited.
		select {
		case err := <-errCh:
			return err
		default:
			return ErrStopped
		}
	}
}

// Stop closes the queue, lets queued jobs finish and waits for the loop
// goroutine to exit. Stopping a loop that never ran only closes the queue.
func (l *Loop) Stop() {
	l.queue.Close()
	if l.claim() {
		close(l.done)
		return
	}
	<-l.done
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Pending returns how many jobs are queued.
func (l *Loop) Pending() int { return l.queue.Len() }

// On reports whether ctx belongs to a job running on l.
func On(ctx context.Context, l *Loop) bool {
	if ctx == nil {
		return false
	}
	cur, _ := ctx.Value(loopKey{}).(*Loop)
	return cur == l
}
