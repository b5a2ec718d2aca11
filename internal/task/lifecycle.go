package task

import "sync/atomic"

// Lifecycle is the owner of async work. Work submitted for an inactive
// owner never runs, and results that complete after the owner went
// inactive are dropped.
type Lifecycle interface {
	Active() bool
}

// LifecycleFunc adapts a function to Lifecycle.
type LifecycleFunc func() bool

func (f LifecycleFunc) Active() bool { return f() }

// Switch is a Lifecycle that starts active and is turned off by Stop.
type Switch struct {
	stopped atomic.Bool
}

func (s *Switch) Active() bool { return !s.stopped.Load() }

// Stop makes the switch inactive for good.
func (s *Switch) Stop() { s.stopped.Store(true) }
