package loop

import "context"

// Dispatcher decides where a callback runs. *Loop is one; Direct runs in
// place.
type Dispatcher interface {
	Dispatch(ctx context.Context, fn func(ctx context.Context))
}

type direct struct{}

func (direct) Dispatch(ctx context.Context, fn func(ctx context.Context)) { fn(ctx) }

// Direct runs callbacks on whatever goroutine delivers them.
var Direct Dispatcher = direct{}

// Or returns d, or Direct when d is nil.
func Or(d Dispatcher) Dispatcher {
	if d == nil {
		return Direct
	}
	return d
}
