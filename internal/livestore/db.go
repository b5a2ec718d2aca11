package livestore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/livestore/internal/cachepool"
	"github.com/roach88/livestore/internal/config"
	"github.com/roach88/livestore/internal/live"
	"github.com/roach88/livestore/internal/metrics"
	"github.com/roach88/livestore/internal/store"
	"github.com/roach88/livestore/internal/task"
	"github.com/roach88/livestore/internal/worker"
)

// ErrClosed is returned by operations on a closed DB.
var ErrClosed = errors.New("livestore: closed")

// DB is an open livestore.
type DB struct {
	cfg     config.Config
	engine  *store.Engine
	workers *worker.Pool
	pools   *cachepool.Registry
	binder  *live.Binder
	metrics *metrics.Metrics
	closed  atomic.Bool
}

type options struct {
	registerer prometheus.Registerer
}

// Option configures Open.
type Option func(*options)

// WithRegisterer registers the DB's metrics on reg. Without it the DB
// keeps no metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Open opens the store described by cfg and starts the worker pool and
// the binding loop.
func Open(cfg config.Config, opts ...Option) (*DB, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if o.registerer != nil {
		var err error
		if m, err = metrics.New(o.registerer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	engine, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return nil, err
	}

	cacheOpts := append(cfg.CacheOptions(), cachepool.WithEvictFunc(func(pool, tag string, _ any) {
		m.Evicted(pool)
		slog.Debug("cache entry evicted", "pool", pool, "tag", tag)
	}))

	db := &DB{
		cfg:     cfg,
		engine:  engine,
		workers: worker.New(cfg.Workers.Size),
		pools:   cachepool.New(cacheOpts...),
		binder:  live.NewBinder(engine, live.WithMetrics(m)),
		metrics: m,
	}
	slog.Debug("livestore opened", "dir", engine.Dir(), "workers", cfg.Workers.Size)
	return db, nil
}

// Config returns the configuration the DB was opened with.
func (db *DB) Config() config.Config { return db.cfg }

// Engine returns the store engine.
func (db *DB) Engine() *store.Engine { return db.engine }

// Pools returns the cache registry async handles are parked in.
func (db *DB) Pools() *cachepool.Registry { return db.pools }

// Binder returns the binding loop owner.
func (db *DB) Binder() *live.Binder { return db.binder }

// Metrics returns the DB's metrics, nil when none were registered.
func (db *DB) Metrics() *metrics.Metrics { return db.metrics }

// Cancel cancels the async handle cached under tag and drops it from the
// pool.
func (db *DB) Cancel(tag string) bool { return task.CancelCached(db.pools, tag) }

// Suspend suspends the async handle cached under tag.
func (db *DB) Suspend(tag string) bool { return task.SuspendCached(db.pools, tag) }

// Resume resumes the async handle cached under tag.
func (db *DB) Resume(tag string) bool { return task.ResumeCached(db.pools, tag) }

// Close stops the binding loop, drains the worker pool and closes the
// engine. Closing twice is a no-op.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if err := db.binder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close binder: %w", err))
	}
	if err := db.workers.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close workers: %w", err))
	}
	if err := db.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close engine: %w", err))
	}
	db.pools.Clear()
	return errors.Join(errs...)
}
