package livestore

import (
	"github.com/roach88/livestore/internal/live"
	"github.com/roach88/livestore/internal/query"
	"github.com/roach88/livestore/internal/record"
)

// ObserveFirst follows the first record matching q.
func ObserveFirst[T any](db *DB, q query.Query, opts ...live.Option[T]) *live.Observable[record.Value[T]] {
	return live.First(db.binder, q, opts...)
}

// ObserveAll follows every record matching q.
func ObserveAll[T any](db *DB, q query.Query, opts ...live.Option[T]) *live.Observable[[]T] {
	return live.All(db.binder, q, opts...)
}

// ObserveCount follows how many records match q.
func ObserveCount[T any](db *DB, q query.Query, opts ...live.Option[T]) *live.Observable[int] {
	return live.Count(db.binder, q, opts...)
}

// ObserveTranslateFirst follows fn applied to the first match.
func ObserveTranslateFirst[T, R any](db *DB, q query.Query, fn Translator[T, R], opts ...live.Option[R]) *live.Observable[record.Value[R]] {
	return live.TranslateFirst(db.binder, q, live.Translator[T, R](fn), opts...)
}

// ObserveTranslateAll follows fn applied to every match.
func ObserveTranslateAll[T, R any](db *DB, q query.Query, fn Translator[T, R], opts ...live.Option[R]) *live.Observable[[]R] {
	return live.TranslateAll(db.binder, q, live.Translator[T, R](fn), opts...)
}
