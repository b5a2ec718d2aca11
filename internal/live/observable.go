package live

import (
	"context"
	"sync"

	"github.com/roach88/livestore/internal/loop"
)

// Observable holds the last emitted value and pushes new ones to its
// subscribers. It is active while it has at least one subscriber: the
// first subscriber activates it, the last one to leave deactivates it.
type Observable[V any] struct {
	mu         sync.Mutex
	subs       []*Subscription[V]
	value      V
	has        bool
	dispatcher loop.Dispatcher
	onActive   func()
	onInactive func()
}

// Subscription is one subscriber of an Observable.
type Subscription[V any] struct {
	o    *Observable[V]
	fn   func(V)
	mu   sync.Mutex
	gone bool
}

// NewObservable returns an inactive observable. activate and deactivate
// run on the transitions, under the observable's lock; they must not
// block.
func NewObservable[V any](activate, deactivate func()) *Observable[V] {
	return &Observable[V]{
		dispatcher: loop.Direct,
		onActive:   activate,
		onInactive: deactivate,
	}
}

// ObserveOn makes emissions run through d.
func (o *Observable[V]) ObserveOn(d loop.Dispatcher) *Observable[V] {
	o.mu.Lock()
	o.dispatcher = loop.Or(d)
	o.mu.Unlock()
	return o
}

// Subscribe adds fn. If a value was emitted before, fn gets it right away
// (through the dispatcher).
func (o *Observable[V]) Subscribe(fn func(V)) *Subscription[V] {
	s := &Subscription[V]{o: o, fn: fn}
	o.mu.Lock()
	o.subs = append(o.subs, s)
	if len(o.subs) == 1 && o.onActive != nil {
		o.onActive()
	}
	v, has, d := o.value, o.has, o.dispatcher
	o.mu.Unlock()

	if has {
		d.Dispatch(context.Background(), func(context.Context) { s.deliver(v) })
	}
	return s
}

// Unsubscribe removes the subscriber. It is safe to call more than once.
func (s *Subscription[V]) Unsubscribe() {
	s.mu.Lock()
	if s.gone {
		s.mu.Unlock()
		return
	}
	s.gone = true
	s.mu.Unlock()

	o := s.o
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, sub := range o.subs {
		if sub == s {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			break
		}
	}
	if len(o.subs) == 0 && o.onInactive != nil {
		o.onInactive()
	}
}

func (s *Subscription[V]) deliver(v V) {
	s.mu.Lock()
	gone := s.gone
	s.mu.Unlock()
	if !gone {
		s.fn(v)
	}
}

// Active reports whether anyone is subscribed.
func (o *Observable[V]) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs) > 0
}

// Value returns the last emitted value.
func (o *Observable[V]) Value() (V, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value, o.has
}

// emit stores v and delivers it to current subscribers. ctx is the
// emitting job's context, so a dispatcher that is already running it
// delivers in place.
func (o *Observable[V]) emit(ctx context.Context, v V) {
	o.mu.Lock()
	o.value, o.has = v, true
	subs := append([]*Subscription[V](nil), o.subs...)
	d := o.dispatcher
	o.mu.Unlock()

	d.Dispatch(ctx, func(context.Context) {
		for _, s := range subs {
			s.deliver(v)
		}
	})
}
