package scope

import (
	"context"
	"fmt"

	"github.com/roach88/livestore/internal/query"
	"github.com/roach88/livestore/internal/record"
	"github.com/roach88/livestore/internal/store"
)

// Finder is a query bound to an open handle of a scope. Results are
// managed: they stay valid until the handle closes. Use Copy/CopyAll to
// take them out of the scope.
type Finder[T any] struct {
	h *store.Handle
	q query.Query
}

// Query opens T's handle (q.From overrides T's type) and binds q to it.
func Query[T any](ctx context.Context, s *Scope, q query.Query) (Finder[T], error) {
	rt := q.Type(record.TypeOf[T]())
	h, err := s.reader(ctx, rt)
	if err != nil {
		return Finder[T]{}, err
	}
	q.From = rt
	return Finder[T]{h: h, q: q}, nil
}

// Handle returns the handle the finder reads from.
func (f Finder[T]) Handle() *store.Handle { return f.h }

// Query returns the bound query.
func (f Finder[T]) Query() query.Query { return f.q }

func (f Finder[T]) Where(p query.Predicate) Finder[T] {
	f.q = f.q.Where(p)
	return f
}

func (f Finder[T]) Equal(field string, value any) Finder[T] {
	f.q = f.q.Equal(field, value)
	return f
}

func (f Finder[T]) OrderBy(field string, dir query.Direction) Finder[T] {
	f.q = f.q.OrderBy(field, dir)
	return f
}

func (f Finder[T]) Take(n int) Finder[T] {
	f.q = f.q.Take(n)
	return f
}

// First returns the first match as a managed value, or an unbound one.
func (f Finder[T]) First(ctx context.Context) (record.Value[T], error) {
	row, ok, err := f.h.First(ctx, f.q)
	if err != nil || !ok {
		return record.None[T](), err
	}
	v, err := record.Decode[T](f.q.From, row.Key, row.Body)
	if err != nil {
		return record.None[T](), err
	}
	return record.Manage(f.h, v), nil
}

// All returns every match as a managed result set.
func (f Finder[T]) All(ctx context.Context) (record.Results[T], error) {
	rows, err := f.h.Query(ctx, f.q)
	if err != nil {
		return record.Results[T]{}, err
	}
	items, err := Decode[T](f.q.From, rows)
	if err != nil {
		return record.Results[T]{}, err
	}
	return record.ManageAll(f.h, items), nil
}

func (f Finder[T]) Count(ctx context.Context) (int64, error) {
	return f.h.Count(ctx, f.q)
}

// Decode rebuilds records from store rows.
func Decode[T any](rt record.Type, rows []store.Row) ([]T, error) {
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := record.Decode[T](rt, row.Key, row.Body)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

// FindFirst is Query(...).First.
func FindFirst[T any](ctx context.Context, s *Scope, q query.Query) (record.Value[T], error) {
	f, err := Query[T](ctx, s, q)
	if err != nil {
		return record.None[T](), err
	}
	return f.First(ctx)
}

// FindAll is Query(...).All.
func FindAll[T any](ctx context.Context, s *Scope, q query.Query) (record.Results[T], error) {
	f, err := Query[T](ctx, s, q)
	if err != nil {
		return record.Results[T]{}, err
	}
	return f.All(ctx)
}

// Count is Query(...).Count.
func Count[T any](ctx context.Context, s *Scope, q query.Query) (int64, error) {
	f, err := Query[T](ctx, s, q)
	if err != nil {
		return 0, err
	}
	return f.Count(ctx)
}

// Copy detaches a managed value using the store's copy depth for its
// type. Anything that is not a valid managed value yields an unbound
// value.
func Copy[T any](s *Scope, v record.Value[T]) (record.Value[T], error) {
	if err := s.checkOpen(); err != nil {
		return record.None[T](), err
	}
	if v.State() != record.Managed || !v.Valid() {
		return record.None[T](), nil
	}
	item, _ := v.Get()
	depth := s.factory.CopyDepth(record.TypeOfValue(item))
	return record.CopyValue(v, depth), nil
}

// CopyAll detaches a managed result set. A stale or empty set yields an
// empty slice.
func CopyAll[T any](s *Scope, r record.Results[T]) ([]T, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	items := r.Items()
	if len(items) == 0 {
		return []T{}, nil
	}
	depth := s.factory.CopyDepth(record.TypeOfValue(items[0]))
	return record.CopyAll(r, depth), nil
}

// InsertOrUpdate stores items in their type's transaction and returns how
// many keys were new. All items must be of one record type. If a write
// fails, the transaction is canceled (when this scope began it) and the
// error returned.
func InsertOrUpdate[T record.Model](ctx context.Context, s *Scope, items ...T) (int, error) {
	if len(items) == 0 {
		return 0, s.checkOpen()
	}
	rt := record.TypeOfValue(items[0])
	for _, item := range items[1:] {
		if other := record.TypeOfValue(item); other != rt {
			return 0, fmt.Errorf("insert: mixed record types %s and %s", rt, other)
		}
	}

	inserted := 0
	err := s.write(ctx, rt, func(h *store.Handle) error {
		for _, item := range items {
			body, err := record.Encode(item)
			if err != nil {
				return err
			}
			isNew, err := h.Put(ctx, item.RecordKey(), body)
			if err != nil {
				return err
			}
			if isNew {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// DeleteAll removes every record of T's type.
func DeleteAll[T any](ctx context.Context, s *Scope) (int64, error) {
	return DeleteType(ctx, s, record.TypeOf[T]())
}

// DeleteType removes every record of rt.
func DeleteType(ctx context.Context, s *Scope, rt record.Type) (int64, error) {
	var n int64
	err := s.write(ctx, rt, func(h *store.Handle) error {
		var err error
		n, err = h.DeleteAll(ctx)
		return err
	})
	return n, err
}
