// Package cachepool is a registry of named, weighted LRU pools.
//
// A pool is created on first use with its configured capacity, or
// DefaultCapacity. Each entry carries a weight (Cacheable.Weight, a pool's
// Weigher, or 1); whenever the summed weight exceeds the capacity the
// least recently used entries are evicted until it fits. Get and Put both
// refresh recency.
//
// Async task handles are parked here under a tag so unrelated code can
// cancel, suspend or resume them later (see task.Handle.Cache).
package cachepool
