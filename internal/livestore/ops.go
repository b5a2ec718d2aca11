package livestore

import (
	"context"
	"fmt"

	"github.com/roach88/livestore/internal/query"
	"github.com/roach88/livestore/internal/record"
	"github.com/roach88/livestore/internal/scope"
)

// Op is one unit of work against a DB. The same Op runs in any mode.
type Op[T any] func(ctx context.Context, db *DB) (T, error)

// Body is the caller's code inside a scope. Values read through s are
// managed and must be copied before they leave the body.
type Body[T any] func(ctx context.Context, s *scope.Scope) (T, error)

// Translator maps a managed record to a result; ok false drops it.
type Translator[T, R any] func(T) (R, bool)

func (db *DB) scopeOpts() []scope.Option {
	return []scope.Option{scope.WithMetrics(db.metrics)}
}

// run executes body in s and releases s on every exit. A panic becomes
// the error and cancels the write-set.
func run[T any](ctx context.Context, s *scope.Scope, body Body[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("livestore: panic in scope: %v", r)
		}
		if rerr := s.Release(err); err == nil && rerr != nil {
			err = rerr
		}
		if err != nil {
			var zero T
			v = zero
		}
	}()
	return body(ctx, s)
}

// Read runs body in a read scope.
func Read[T any](body Body[T]) Op[T] {
	return func(ctx context.Context, db *DB) (T, error) {
		return run(ctx, scope.NewRead(db.engine, db.scopeOpts()...), body)
	}
}

// Write runs body in a write scope. The write-set commits when body
// returns nil.
func Write[T any](body Body[T]) Op[T] {
	return func(ctx context.Context, db *DB) (T, error) {
		return run(ctx, scope.NewWrite(db.engine, db.scopeOpts()...), body)
	}
}

// ReadWrite runs body in a read-write scope; reads join the transaction
// of their type unless body turns that off.
func ReadWrite[T any](body Body[T]) Op[T] {
	return func(ctx context.Context, db *DB) (T, error) {
		return run(ctx, scope.NewReadWrite(db.engine, db.scopeOpts()...), body)
	}
}

// Count counts T's records matching q.
func Count[T any](q query.Query) Op[int64] {
	return Read(func(ctx context.Context, s *scope.Scope) (int64, error) {
		return scope.Count[T](ctx, s, q)
	})
}

// FindFirst returns a detached copy of the first match, or an unbound
// value.
func FindFirst[T any](q query.Query) Op[record.Value[T]] {
	return Read(func(ctx context.Context, s *scope.Scope) (record.Value[T], error) {
		v, err := scope.FindFirst[T](ctx, s, q)
		if err != nil {
			return record.None[T](), err
		}
		return scope.Copy(s, v)
	})
}

// TranslateFirst applies fn to the first match inside the scope.
func TranslateFirst[T, R any](q query.Query, fn Translator[T, R]) Op[record.Value[R]] {
	return Read(func(ctx context.Context, s *scope.Scope) (record.Value[R], error) {
		v, err := scope.FindFirst[T](ctx, s, q)
		if err != nil {
			return record.None[R](), err
		}
		item, ok := v.Get()
		if !ok {
			return record.None[R](), nil
		}
		r, ok := fn(item)
		if !ok {
			return record.None[R](), nil
		}
		return record.Detach(r), nil
	})
}

// FindAll returns detached copies of every match.
func FindAll[T any](q query.Query) Op[[]T] {
	return Read(func(ctx context.Context, s *scope.Scope) ([]T, error) {
		r, err := scope.FindAll[T](ctx, s, q)
		if err != nil {
			return nil, err
		}
		return scope.CopyAll(s, r)
	})
}

// TranslateAll applies fn to every match inside the scope, dropping the
// records fn rejects.
func TranslateAll[T, R any](q query.Query, fn Translator[T, R]) Op[[]R] {
	return Read(func(ctx context.Context, s *scope.Scope) ([]R, error) {
		r, err := scope.FindAll[T](ctx, s, q)
		if err != nil {
			return nil, err
		}
		out := make([]R, 0, r.Len())
		for _, item := range r.Items() {
			if v, ok := fn(item); ok {
				out = append(out, v)
			}
		}
		return out, nil
	})
}

// InsertOrUpdate stores items and returns how many keys were new.
func InsertOrUpdate[T record.Model](items ...T) Op[int] {
	return Write(func(ctx context.Context, s *scope.Scope) (int, error) {
		return scope.InsertOrUpdate(ctx, s, items...)
	})
}

// DeleteAll removes every record of T's type and returns how many went.
func DeleteAll[T any]() Op[int64] {
	return DeleteType(record.TypeOf[T]())
}

// DeleteType removes every record of rt.
func DeleteType(rt record.Type) Op[int64] {
	return Write(func(ctx context.Context, s *scope.Scope) (int64, error) {
		return scope.DeleteType(ctx, s, rt)
	})
}
