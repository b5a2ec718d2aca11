package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/livestore/internal/query"
)

// Listener receives the current rows of a live result. It always runs on
// the handle's owner loop.
type Listener func(ctx context.Context, rows []Row, err error)

// Live is a store-bound query result that re-runs after every commit that
// changes its type. It is valid only while its handle is open.
type Live struct {
	id       string
	h        *Handle
	q        query.Query
	listener Listener
	stopped  atomic.Bool
}

// Watch runs q asynchronously on the handle's owner loop and again after
// every committed change to the type. The first delivery is the initial
// result.
func (h *Handle) Watch(q query.Query, listener Listener) (*Live, error) {
	if err := h.checkOpen("watch"); err != nil {
		return nil, err
	}
	if h.owner == nil {
		return nil, newError(ErrCodeNoEventLoop, h.rt, "watch", nil)
	}
	if err := query.Validate(q); err != nil {
		return nil, fmt.Errorf("watch %s: %w", h.rt, err)
	}

	l := &Live{
		id:       uuid.Must(uuid.NewV7()).String(),
		h:        h,
		q:        q,
		listener: listener,
	}
	h.lives[l.id] = l
	h.eng.addWatcher(l)
	l.schedule()
	return l, nil
}

func (l *Live) ID() string { return l.id }

// Handle returns the handle the result is bound to.
func (l *Live) Handle() *Handle { return l.h }

// Stop detaches the listener. Call it on the owner loop.
func (l *Live) Stop() {
	l.stop()
	if l.h.lives != nil {
		delete(l.h.lives, l.id)
	}
}

func (l *Live) stop() {
	if l.stopped.CompareAndSwap(false, true) {
		l.h.eng.removeWatcher(l)
	}
}

func (l *Live) schedule() {
	if l.stopped.Load() {
		return
	}
	l.h.owner.Post(l.run)
}

func (l *Live) run(ctx context.Context) {
	if l.stopped.Load() || l.h.Closed() {
		return
	}
	rows, err := l.h.Query(ctx, l.q)
	if l.stopped.Load() {
		return
	}
	l.h.seen = l.h.eng.Version(l.h.rt)
	l.listener(ctx, rows, err)
}
