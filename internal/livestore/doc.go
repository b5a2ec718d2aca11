// Package livestore is the entry point: a DB bundles the store engine,
// the worker pool, the cache registry and the binding loop, and runs one
// set of operations in three modes.
//
//   - Sync runs an Op on the calling goroutine.
//   - Blocking runs it on the worker pool and waits.
//   - Async runs it on the worker pool and returns a *task.Handle.
//
// Every Op opens its own scope and releases it on every exit path: the
// write-set is committed when the Op succeeds and canceled when it fails
// or panics. Values returned by the find and translate Ops are detached.
//
// The Observe functions return live observables backed by the DB's
// binding loop.
package livestore
