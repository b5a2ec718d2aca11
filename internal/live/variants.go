package live

import (
	"context"
	"log/slog"

	"github.com/roach88/livestore/internal/diff"
	"github.com/roach88/livestore/internal/query"
	"github.com/roach88/livestore/internal/record"
	"github.com/roach88/livestore/internal/scope"
	"github.com/roach88/livestore/internal/store"
	"github.com/roach88/livestore/internal/task"
)

type config[T any] struct {
	policy diff.Policy[T]
}

// Option configures an observable variant.
type Option[T any] func(*config[T])

// WithPolicy replaces the variant's diff policy. The zero policy emits
// every snapshot.
func WithPolicy[T any](p diff.Policy[T]) Option[T] {
	return func(c *config[T]) { c.policy = p }
}

func newConfig[T any](policy diff.Policy[T], opts []Option[T]) config[T] {
	c := config[T]{policy: policy}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Translator maps a record to the emitted shape; ok false drops it.
type Translator[T, R any] func(T) (R, bool)

// bound builds an observable that binds on activation and unbinds on
// deactivation.
func bound[V any](b *Binder, bind func(o *Observable[V]) *Binding) *Observable[V] {
	var o *Observable[V]
	var bd *Binding
	o = NewObservable[V](
		func() { bd = bind(o) },
		func() {
			b.Unbind(bd)
			bd = nil
		},
	)
	return o
}

// gate emits v unless the previous emission is not different from it.
func gate[V any](ctx context.Context, b *Binder, o *Observable[V], v V, differs func(prev V) bool) {
	if prev, had := o.Value(); had && !differs(prev) {
		b.metrics.Emission(false)
		return
	}
	b.metrics.Emission(true)
	o.emit(ctx, v)
}

func decodeFirst[T any](rt record.Type, h *store.Handle, rows []store.Row) (record.Value[T], error) {
	if len(rows) == 0 {
		return record.None[T](), nil
	}
	v, err := record.Decode[T](rt, rows[0].Key, rows[0].Body)
	if err != nil {
		return record.None[T](), err
	}
	return record.Manage(h, v), nil
}

func decodeAll[T any](rt record.Type, h *store.Handle, rows []store.Row) (record.Results[T], error) {
	items, err := scope.Decode[T](rt, rows)
	if err != nil {
		return record.Results[T]{}, err
	}
	return record.ManageAll(h, items), nil
}

func logCopyFailure(rt record.Type) func(*task.Reason) {
	return func(r *task.Reason) {
		slog.Warn("live copy failed, keeping last value", "type", rt, "error", r)
	}
}

// First observes the first record matching q as a detached value (unbound
// when nothing matches). The default policy is diff.ForRecords.
func First[T any](b *Binder, q query.Query, opts ...Option[T]) *Observable[record.Value[T]] {
	cfg := newConfig(diff.ForRecords[T](), opts)
	q.From = q.Type(record.TypeOf[T]())

	return bound(b, func(o *Observable[record.Value[T]]) *Binding {
		return b.BindFirst(q, func(ctx context.Context, h *store.Handle, rows []store.Row) {
			managed, err := decodeFirst[T](q.From, h, rows)
			if err != nil {
				slog.Warn("live decode failed", "type", q.From, "error", err)
				return
			}
			CopyAsync(b, managed).
				OnSuccess(func(v record.Value[T]) {
					if managed.State() == record.Managed && !managed.Valid() {
						return // unbound before the copy ran
					}
					gate(ctx, b, o, v, func(prev record.Value[T]) bool {
						pv, pok := prev.Get()
						nv, nok := v.Get()
						return cfg.policy.Differs(pv, pok, nv, nok)
					})
				}).
				OnFailure(logCopyFailure(q.From))
		})
	})
}

// All observes every record matching q as a detached slice. The default
// policy is diff.ForRecords.
func All[T any](b *Binder, q query.Query, opts ...Option[T]) *Observable[[]T] {
	cfg := newConfig(diff.ForRecords[T](), opts)
	q.From = q.Type(record.TypeOf[T]())

	return bound(b, func(o *Observable[[]T]) *Binding {
		return b.BindAll(q, func(ctx context.Context, h *store.Handle, rows []store.Row) {
			managed, err := decodeAll[T](q.From, h, rows)
			if err != nil {
				slog.Warn("live decode failed", "type", q.From, "error", err)
				return
			}
			CopyAllAsync(b, managed).
				OnSuccess(func(items []T) {
					if !managed.Valid() {
						return
					}
					gate(ctx, b, o, items, func(prev []T) bool {
						return cfg.policy.DiffersAll(prev, items)
					})
				}).
				OnFailure(logCopyFailure(q.From))
		})
	})
}

// Count observes how many records match q. Snapshots are compared with
// the policy over T, which by default ignores changes and moves, so only
// inserts and removals emit.
func Count[T any](b *Binder, q query.Query, opts ...Option[T]) *Observable[int] {
	cfg := newConfig(diff.ForRecords[T]().Ignore(diff.Change, diff.Move), opts)
	q.From = q.Type(record.TypeOf[T]())

	// last is only touched on the binding loop.
	var last []T
	return bound(b, func(o *Observable[int]) *Binding {
		return b.BindAll(q, func(ctx context.Context, h *store.Handle, rows []store.Row) {
			managed, err := decodeAll[T](q.From, h, rows)
			if err != nil {
				slog.Warn("live decode failed", "type", q.From, "error", err)
				return
			}
			CopyAllAsync(b, managed).
				OnSuccess(func(items []T) {
					if !managed.Valid() {
						return
					}
					prev := last
					last = items
					gate(ctx, b, o, len(items), func(int) bool {
						return cfg.policy.DiffersAll(prev, items)
					})
				}).
				OnFailure(logCopyFailure(q.From))
		})
	})
}

// TranslateFirst observes fn applied to the first record matching q. The
// policy compares translated values; the default is diff.ForRecords[R].
func TranslateFirst[T, R any](b *Binder, q query.Query, fn Translator[T, R], opts ...Option[R]) *Observable[record.Value[R]] {
	cfg := newConfig(diff.ForRecords[R](), opts)
	q.From = q.Type(record.TypeOf[T]())

	return bound(b, func(o *Observable[record.Value[R]]) *Binding {
		return b.BindFirst(q, func(ctx context.Context, h *store.Handle, rows []store.Row) {
			managed, err := decodeFirst[T](q.From, h, rows)
			if err != nil {
				slog.Warn("live decode failed", "type", q.From, "error", err)
				return
			}
			v := record.None[R]()
			if item, ok := managed.Get(); ok {
				if r, ok := fn(item); ok {
					v = record.Detach(r)
				}
			}
			gate(ctx, b, o, v, func(prev record.Value[R]) bool {
				pv, pok := prev.Get()
				nv, nok := v.Get()
				return cfg.policy.Differs(pv, pok, nv, nok)
			})
		})
	})
}

// TranslateAll observes fn applied to every record matching q, dropping
// records fn rejects. The policy compares translated values.
func TranslateAll[T, R any](b *Binder, q query.Query, fn Translator[T, R], opts ...Option[R]) *Observable[[]R] {
	cfg := newConfig(diff.ForRecords[R](), opts)
	q.From = q.Type(record.TypeOf[T]())

	return bound(b, func(o *Observable[[]R]) *Binding {
		return b.BindAll(q, func(ctx context.Context, h *store.Handle, rows []store.Row) {
			managed, err := decodeAll[T](q.From, h, rows)
			if err != nil {
				slog.Warn("live decode failed", "type", q.From, "error", err)
				return
			}
			out := make([]R, 0, managed.Len())
			for _, item := range managed.Items() {
				if r, ok := fn(item); ok {
					out = append(out, r)
				}
			}
			gate(ctx, b, o, out, func(prev []R) bool {
				return cfg.policy.DiffersAll(prev, out)
			})
		})
	})
}
