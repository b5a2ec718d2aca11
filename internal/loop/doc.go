// Package loop provides single-goroutine executors.
//
// A Loop owns whatever state only its jobs touch. The reactive binding
// thread is a Loop; so is any delivery context an observer wants its
// values on. Jobs receive a context marked with their loop, which is how
// Dispatch knows it can run a callback inline instead of posting it.
//
// Queue, the unbounded FIFO under every Loop, is also used by the worker
// pool.
package loop
