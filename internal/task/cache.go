package task

import "github.com/roach88/livestore/internal/cachepool"

// Pool is the cache pool handles are parked in.
const Pool = "task.Handle"

// Controller is the part of a handle reachable by tag.
type Controller interface {
	Cancel()
	Suspend()
	Resume()
}

// Cache parks h in reg under tag, replacing any handle already there.
func (h *Handle[T]) Cache(reg *cachepool.Registry, tag string) *Handle[T] {
	reg.Put(Pool, tag, h)
	return h
}

// CancelCached cancels the handle cached under tag and drops it from the
// pool. It reports whether one was found.
func CancelCached(reg *cachepool.Registry, tag string) bool {
	c, ok := cachepool.GetAndRemoveAs[Controller](reg, Pool, tag)
	if ok {
		c.Cancel()
	}
	return ok
}

// SuspendCached suspends the handle cached under tag. The handle stays
// cached so it can be resumed by tag.
func SuspendCached(reg *cachepool.Registry, tag string) bool {
	c, ok := cachepool.GetAs[Controller](reg, Pool, tag)
	if ok {
		c.Suspend()
	}
	return ok
}

// ResumeCached resumes the handle cached under tag.
func ResumeCached(reg *cachepool.Registry, tag string) bool {
	c, ok := cachepool.GetAs[Controller](reg, Pool, tag)
	if ok {
		c.Resume()
	}
	return ok
}
