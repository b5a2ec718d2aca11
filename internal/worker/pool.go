package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/livestore/internal/loop"
)

// ErrClosed is returned when submitting to a closed pool. Work is rejected,
// never silently dropped.
var ErrClosed = errors.New("worker pool closed")

// Pool runs submitted functions on background goroutines.
//
// With Size > 0 a fixed set of workers drains an unbounded FIFO, so
// submissions never block. With Size 0 every submission gets its own
// goroutine.
type Pool struct {
	size  int
	queue *loop.Queue[func()]
	group errgroup.Group

	mu     sync.Mutex
	closed bool
}

// New starts a pool with size workers; size 0 means one goroutine per
// submission.
func New(size int) *Pool {
	if size < 0 {
		size = 0
	}
	p := &Pool{size: size, queue: loop.NewQueue[func()]()}
	for i := 0; i < size; i++ {
		p.group.Go(p.work)
	}
	return p
}

// Size is the configured worker count.
func (p *Pool) Size() int { return p.size }

// Pending is how many submissions wait for a worker.
func (p *Pool) Pending() int { return p.queue.Len() }

// Submit schedules fn. It returns ErrClosed after Close.
func (p *Pool) Submit(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.size == 0 {
		p.group.Go(func() error {
			run(fn)
			return nil
		})
		return nil
	}
	if !p.queue.Enqueue(fn) {
		return ErrClosed
	}
	return nil
}

func (p *Pool) work() error {
	for {
		if fn, ok := p.queue.TryDequeue(); ok {
			run(fn)
			continue
		}
		<-p.queue.Wait()
		if p.queue.Drained() {
			return nil
		}
	}
}

func run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker job panicked", "panic", r)
		}
	}()
	fn()
}

// Close rejects new submissions, runs everything already submitted and
// waits for it. Closing twice is a no-op.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.queue.Close()
	p.mu.Unlock()
	return p.group.Wait()
}

// Call runs fn on the pool and blocks until it returns or ctx is done.
// A panic in fn is returned as an error.
func Call[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	err := p.Submit(func() {
		var res result
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("panic: %v", r)
			}
			done <- res
		}()
		res.v, res.err = fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	select {
	case res := <-done:
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
