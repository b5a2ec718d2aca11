package live

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/livestore/internal/loop"
	"github.com/roach88/livestore/internal/metrics"
	"github.com/roach88/livestore/internal/query"
	"github.com/roach88/livestore/internal/record"
	"github.com/roach88/livestore/internal/scope"
	"github.com/roach88/livestore/internal/store"
	"github.com/roach88/livestore/internal/task"
)

// Listener receives every result of a binding, on the binding loop. h is
// the handle the rows were read through; values decoded from rows are
// managed by h.
type Listener func(ctx context.Context, h *store.Handle, rows []store.Row)

// Binding identifies one registration. It is returned before the bind job
// has run; Unbind may be called at any time after.
type Binding struct {
	id    string
	rt    record.Type
	first bool
	live  *store.Live
}

func (b *Binding) ID() string { return b.id }

// Binder owns every live binding. All of its work (bind, unbind, the copy
// after a change and the diff) runs on one loop, the only goroutine that
// touches the handles it opens.
type Binder struct {
	loop    *loop.Loop
	reader  *scope.Scope
	metrics *metrics.Metrics

	// regs is confined to the loop.
	regs   []*Binding
	closed atomic.Bool
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithMetrics counts bindings and emissions on m.
func WithMetrics(m *metrics.Metrics) BinderOption {
	return func(b *Binder) { b.metrics = m }
}

// NewBinder starts the binding loop. Handles are opened through f.
func NewBinder(f scope.Factory, opts ...BinderOption) *Binder {
	b := &Binder{loop: loop.New("live-binder")}
	for _, opt := range opts {
		opt(b)
	}
	b.reader = scope.NewRead(f, scope.OnLoop(b.loop), scope.WithMetrics(b.metrics))
	b.loop.Start(context.Background())
	return b
}

// Loop returns the binding loop.
func (b *Binder) Loop() *loop.Loop { return b.loop }

// Metrics returns the binder's metrics, possibly nil.
func (b *Binder) Metrics() *metrics.Metrics { return b.metrics }

// BindFirst watches the first record matching q.
func (b *Binder) BindFirst(q query.Query, listener Listener) *Binding {
	return b.bind(q.Take(1), true, listener)
}

// BindAll watches every record matching q.
func (b *Binder) BindAll(q query.Query, listener Listener) *Binding {
	return b.bind(q, false, listener)
}

func (b *Binder) bind(q query.Query, first bool, listener Listener) *Binding {
	bd := &Binding{id: uuid.Must(uuid.NewV7()).String(), rt: q.From, first: first}
	posted := b.loop.Post(func(ctx context.Context) {
		if b.closed.Load() {
			return
		}
		h, err := b.reader.OpenHandle(ctx, bd.rt)
		if err != nil {
			slog.Error("bind failed", "type", bd.rt, "binding", bd.id, "error", err)
			return
		}
		bd.live, err = h.Watch(q, func(ctx context.Context, rows []store.Row, err error) {
			if err != nil {
				slog.Warn("live query failed", "type", bd.rt, "binding", bd.id, "error", err)
				return
			}
			listener(ctx, h, rows)
		})
		if err != nil {
			slog.Error("bind failed", "type", bd.rt, "binding", bd.id, "error", err)
			b.releaseType(bd.rt)
			return
		}
		b.regs = append(b.regs, bd)
		b.metrics.BindingAdded()
		slog.Debug("bound", "type", bd.rt, "binding", bd.id, "first", first)
	})
	if !posted {
		slog.Debug("bind on closed binder ignored", "type", bd.rt)
	}
	return bd
}

// Unbind removes bd. When no other binding of the type remains, the
// type's handle is closed.
func (b *Binder) Unbind(bd *Binding) {
	if bd == nil {
		return
	}
	b.loop.Post(func(ctx context.Context) {
		i := slices.Index(b.regs, bd)
		if i < 0 {
			return
		}
		bd.live.Stop()
		b.regs = slices.Delete(b.regs, i, i+1)
		b.metrics.BindingRemoved()
		b.releaseType(bd.rt)
		slog.Debug("unbound", "type", bd.rt, "binding", bd.id)
	})
}

// releaseType closes rt's handle if nothing is bound to it.
func (b *Binder) releaseType(rt record.Type) {
	if slices.ContainsFunc(b.regs, func(r *Binding) bool { return r.rt == rt }) {
		return
	}
	if err := b.reader.CloseHandle(rt); err != nil {
		slog.Warn("close bound handle failed", "type", rt, "error", err)
	}
}

// Bindings returns how many registrations are live.
func (b *Binder) Bindings(ctx context.Context) (int, error) {
	var n int
	err := b.loop.Call(ctx, func(context.Context) error {
		n = len(b.regs)
		return nil
	})
	return n, err
}

// Close unbinds everything, closes the binder's handles and stops the
// loop. Later binds are ignored.
func (b *Binder) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	var closeErr error
	err := b.loop.Call(context.Background(), func(context.Context) error {
		for _, bd := range b.regs {
			bd.live.Stop()
			b.metrics.BindingRemoved()
		}
		b.regs = nil
		closeErr = b.reader.Close()
		return nil
	})
	b.loop.Stop()
	if err != nil {
		return err
	}
	return closeErr
}

// CopyAsync detaches v on the binding loop.
func CopyAsync[T any](b *Binder, v record.Value[T]) *task.Handle[record.Value[T]] {
	return onLoop(b, func() (record.Value[T], error) {
		return scope.Copy(b.reader, v)
	})
}

// CopyAllAsync detaches r on the binding loop.
func CopyAllAsync[T any](b *Binder, r record.Results[T]) *task.Handle[[]T] {
	return onLoop(b, func() ([]T, error) {
		return scope.CopyAll(b.reader, r)
	})
}

func onLoop[T any](b *Binder, fn func() (T, error)) *task.Handle[T] {
	h := task.New[T]()
	posted := b.loop.Post(func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				h.Fail(task.NewReason(fmt.Sprintf("panic: %v", r), task.CodePanic))
			}
		}()
		v, err := fn()
		if err != nil {
			h.Fail(task.ReasonOf(err))
			return
		}
		h.Succeed(v)
	})
	if !posted {
		h.Fail(task.NewReason("binder closed", task.CodeRejected).WithCause(loop.ErrStopped))
	}
	return h
}
