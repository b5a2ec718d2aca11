package livestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/livestore/internal/task"
	"github.com/roach88/livestore/internal/worker"
)

// Sync runs op on the calling goroutine.
func Sync[T any](ctx context.Context, db *DB, op Op[T]) (T, error) {
	if db.closed.Load() {
		var zero T
		return zero, ErrClosed
	}
	return op(ctx, db)
}

// Blocking runs op on the worker pool and waits for it. Errors come back
// unchanged. If ctx ends first Blocking returns ctx.Err() and op keeps
// running to completion in the background.
func Blocking[T any](ctx context.Context, db *DB, op Op[T]) (T, error) {
	if db.closed.Load() {
		var zero T
		return zero, ErrClosed
	}
	return worker.Call(ctx, db.workers, func(ctx context.Context) (T, error) {
		return op(ctx, db)
	})
}

// Async submits op to the worker pool. The handle fails with the op's
// error as the Reason's cause. Pass task.Owner to tie the job to a
// lifecycle. On a closed DB the handle fails with worker.ErrClosed as the
// cause.
func Async[T any](db *DB, op Op[T], opts ...task.Option) *task.Handle[T] {
	report := task.Report(func(o task.Outcome) { db.metrics.AsyncJob(string(o)) })
	opts = append([]task.Option{report}, opts...)
	return task.Go(db.workers, func(ctx context.Context) (T, error) {
		return op(ctx, db)
	}, opts...)
}

// Mode names one of the three ways to run an op.
type Mode string

const (
	ModeSync     Mode = "sync"
	ModeBlocking Mode = "blocking"
	ModeAsync    Mode = "async"
)

// ParseMode accepts a mode name. The empty string means blocking.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeBlocking, nil
	case ModeSync, ModeBlocking, ModeAsync:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Exec runs op in mode and returns its result. Async waits on the handle
// and unwraps the failure's cause.
func Exec[T any](ctx context.Context, db *DB, mode Mode, op Op[T]) (T, error) {
	switch mode {
	case ModeSync:
		return Sync(ctx, db, op)
	case ModeAsync:
		v, err := Async(db, op).Wait(ctx)
		var r *task.Reason
		if errors.As(err, &r) && r.Cause != nil {
			return v, r.Cause
		}
		return v, err
	default:
		return Blocking(ctx, db, op)
	}
}
