// Package task is the async handle returned by non-blocking operations.
//
// A Handle resolves at most once, to a value or to a *Reason. Continuations
// registered before or after resolution fire exactly once, on the handle's
// dispatcher. A handle can be canceled, and suspended/resumed while it is
// unresolved.
//
// Suspension is cooperative: the job body only stops at Checkpoint calls,
// and there is always one right before the body starts. A resolution that
// arrives while suspended is held and delivered on Resume.
//
// Handles can be parked in a cachepool.Registry under a tag (pool
// "task.Handle") so unrelated code can cancel, suspend or resume them by
// tag.
package task
