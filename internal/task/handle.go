package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/livestore/internal/loop"
)

// ErrCanceled is what Wait returns for a canceled handle.
var ErrCanceled = errors.New("task canceled")

// State of a Handle. Succeeded, Failed and Canceled are terminal.
type State uint8

const (
	Unresolved State = iota
	Suspended
	Succeeded
	Failed
	Canceled
)

func (s State) String() string {
	switch s {
	case Suspended:
		return "suspended"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return "unresolved"
	}
}

func (s State) terminal() bool { return s >= Succeeded }

// Outcome is reported once per handle to a Report hook.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFailure    Outcome = "failure"
	OutcomeCanceled   Outcome = "canceled"
	OutcomeSuppressed Outcome = "suppressed"
)

// Job describes the unit of work behind a handle.
type Job struct {
	started   atomic.Bool
	cancelled atomic.Bool
	done      chan struct{}
}

// Started reports whether the body began running.
func (j *Job) Started() bool { return j.started.Load() }

// Cancelled reports whether the job was canceled, before or while running.
func (j *Job) Cancelled() bool { return j.cancelled.Load() }

// Done is closed once the handle is settled.
func (j *Job) Done() <-chan struct{} { return j.done }

type outcome[T any] struct {
	value  T
	reason *Reason
}

// Handle is an async result. The zero value is not usable; see New and Go.
type Handle[T any] struct {
	id     string
	job    Job
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	resume     chan struct{}
	pending    *outcome[T]
	value      T
	reason     *Reason
	dispatcher loop.Dispatcher
	report     func(Outcome)
	onComplete []func()
	onSuccess  []func(T)
	onFailure  []func(*Reason)
}

type checkpointKey struct{}

type yielder interface {
	yield(ctx context.Context) error
}

// New returns an unresolved handle that is settled by Succeed, Fail or
// Cancel.
func New[T any]() *Handle[T] {
	h := &Handle[T]{
		id:         uuid.Must(uuid.NewV7()).String(),
		dispatcher: loop.Direct,
	}
	h.job.done = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = context.WithValue(ctx, checkpointKey{}, yielder(h))
	h.cancel = cancel
	return h
}

func (h *Handle[T]) ID() string { return h.id }

// Job returns the job behind the handle.
func (h *Handle[T]) Job() *Job { return &h.job }

// Context is canceled when the handle is canceled. Job bodies receive it
// and it carries the handle's checkpoint.
func (h *Handle[T]) Context() context.Context { return h.ctx }

// Weight makes a handle a cachepool.Cacheable of weight 1.
func (h *Handle[T]) Weight() int { return 1 }

func (h *Handle[T]) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle[T]) Resolved() bool {
	s := h.State()
	return s == Succeeded || s == Failed
}

func (h *Handle[T]) Canceled() bool  { return h.State() == Canceled }
func (h *Handle[T]) Suspended() bool { return h.State() == Suspended }

// Result returns the resolution. ok is false until the handle succeeds or
// fails.
func (h *Handle[T]) Result() (value T, reason *Reason, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case Succeeded:
		return h.value, nil, true
	case Failed:
		return value, h.reason, true
	}
	return value, nil, false
}

// Wait blocks until the handle settles or ctx is done. A failure is
// returned as its *Reason; cancellation as ErrCanceled.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.job.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	v, reason, ok := h.Result()
	switch {
	case !ok:
		return v, ErrCanceled
	case reason != nil:
		return v, reason
	}
	return v, nil
}

// ObserveOn routes continuations through d. Continuations already fired
// are not affected.
func (h *Handle[T]) ObserveOn(d loop.Dispatcher) *Handle[T] {
	h.mu.Lock()
	h.dispatcher = loop.Or(d)
	h.mu.Unlock()
	return h
}

// OnComplete runs fn once the handle succeeds or fails.
func (h *Handle[T]) OnComplete(fn func()) *Handle[T] {
	h.mu.Lock()
	switch h.state {
	case Succeeded, Failed:
		d := h.dispatcher
		h.mu.Unlock()
		d.Dispatch(context.Background(), func(context.Context) { fn() })
		return h
	case Unresolved, Suspended:
		h.onComplete = append(h.onComplete, fn)
	}
	h.mu.Unlock()
	return h
}

// OnSuccess runs fn with the value once the handle succeeds.
func (h *Handle[T]) OnSuccess(fn func(T)) *Handle[T] {
	h.mu.Lock()
	switch h.state {
	case Succeeded:
		d, v := h.dispatcher, h.value
		h.mu.Unlock()
		d.Dispatch(context.Background(), func(context.Context) { fn(v) })
		return h
	case Unresolved, Suspended:
		h.onSuccess = append(h.onSuccess, fn)
	}
	h.mu.Unlock()
	return h
}

// OnFailure runs fn with the reason once the handle fails.
func (h *Handle[T]) OnFailure(fn func(*Reason)) *Handle[T] {
	h.mu.Lock()
	switch h.state {
	case Failed:
		d, r := h.dispatcher, h.reason
		h.mu.Unlock()
		d.Dispatch(context.Background(), func(context.Context) { fn(r) })
		return h
	case Unresolved, Suspended:
		h.onFailure = append(h.onFailure, fn)
	}
	h.mu.Unlock()
	return h
}

// Succeed resolves the handle with v. It reports false if the handle was
// already settled.
func (h *Handle[T]) Succeed(v T) bool {
	return h.settle(outcome[T]{value: v})
}

// Fail resolves the handle with reason.
func (h *Handle[T]) Fail(reason *Reason) bool {
	if reason == nil {
		reason = NewReason("failed", CodeUnknown)
	}
	return h.settle(outcome[T]{reason: reason})
}

func (h *Handle[T]) settle(o outcome[T]) bool {
	h.mu.Lock()
	switch {
	case h.state.terminal():
		h.mu.Unlock()
		return false
	case h.state == Suspended:
		if h.pending != nil {
			h.mu.Unlock()
			return false
		}
		h.pending = &o
		h.mu.Unlock()
		return true
	}
	h.resolveLocked(o)
	return true
}

// resolveLocked moves to a terminal state, unlocks and fires continuations.
func (h *Handle[T]) resolveLocked(o outcome[T]) {
	var result Outcome
	if o.reason != nil {
		h.state, h.reason, result = Failed, o.reason, OutcomeFailure
	} else {
		h.state, h.value, result = Succeeded, o.value, OutcomeSuccess
	}
	complete, success, failure := h.onComplete, h.onSuccess, h.onFailure
	h.onComplete, h.onSuccess, h.onFailure = nil, nil, nil
	d, report := h.dispatcher, h.report
	h.mu.Unlock()
	h.cancel()

	if report != nil {
		report(result)
	}
	close(h.job.done)
	d.Dispatch(context.Background(), func(context.Context) {
		for _, fn := range complete {
			fn()
		}
		if o.reason != nil {
			for _, fn := range failure {
				fn(o.reason)
			}
			return
		}
		for _, fn := range success {
			fn(o.value)
		}
	})
}

// Cancel stops the job if it has not resolved. A job that has not started
// never will; a running one sees its context canceled. Continuations are
// dropped. Canceling a settled handle is a no-op.
func (h *Handle[T]) Cancel() {
	h.terminate(OutcomeCanceled)
}

// suppress settles the handle without delivering anything.
func (h *Handle[T]) suppress() {
	h.terminate(OutcomeSuppressed)
}

func (h *Handle[T]) terminate(result Outcome) {
	h.mu.Lock()
	if h.state.terminal() {
		h.mu.Unlock()
		return
	}
	if h.state == Suspended {
		close(h.resume)
	}
	h.state = Canceled
	h.pending = nil
	h.onComplete, h.onSuccess, h.onFailure = nil, nil, nil
	h.job.cancelled.Store(true)
	report := h.report
	h.mu.Unlock()
	h.cancel()

	slog.Debug("task settled without result", "task", h.id, "outcome", string(result))
	if report != nil {
		report(result)
	}
	close(h.job.done)
}

// Suspend holds the job at its next checkpoint. Only an unresolved handle
// can be suspended; suspending twice is a no-op.
func (h *Handle[T]) Suspend() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Unresolved {
		return
	}
	h.state = Suspended
	h.resume = make(chan struct{})
}

// Resume releases a suspended job, and delivers a result that arrived
// while it was suspended.
func (h *Handle[T]) Resume() {
	h.mu.Lock()
	if h.state != Suspended {
		h.mu.Unlock()
		return
	}
	h.state = Unresolved
	close(h.resume)
	if p := h.pending; p != nil {
		h.pending = nil
		h.resolveLocked(*p)
		return
	}
	h.mu.Unlock()
}

func (h *Handle[T]) yield(ctx context.Context) error {
	for {
		h.mu.Lock()
		if h.state == Canceled {
			h.mu.Unlock()
			return ErrCanceled
		}
		if h.state != Suspended {
			h.mu.Unlock()
			return nil
		}
		ch := h.resume
		h.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Checkpoint blocks while the handle running this job is suspended. It
// returns an error once the handle is canceled. Outside a job it returns
// ctx.Err().
func Checkpoint(ctx context.Context) error {
	if y, ok := ctx.Value(checkpointKey{}).(yielder); ok {
		if err := y.yield(ctx); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// Submitter runs a function in the background. *worker.Pool is one.
type Submitter interface {
	Submit(fn func()) error
}

type options struct {
	owner      Lifecycle
	dispatcher loop.Dispatcher
	report     func(Outcome)
}

// Option configures Go.
type Option func(*options)

// Owner ties the job to lc: if lc is inactive at submission the job never
// runs, and if it is inactive when the job finishes the result is dropped.
func Owner(lc Lifecycle) Option {
	return func(o *options) { o.owner = lc }
}

// DeliverOn sets the continuation dispatcher up front. Same as ObserveOn.
func DeliverOn(d loop.Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// Report registers a hook told how the handle settled.
func Report(fn func(Outcome)) Option {
	return func(o *options) { o.report = fn }
}

func (o options) active() bool {
	return o.owner == nil || o.owner.Active()
}

// Go submits fn and returns its handle. fn receives the handle's context.
// A failing fn resolves the handle with ReasonOf(err); a panic resolves
// it with CodePanic; a rejected submission with CodeRejected.
func Go[T any](sub Submitter, fn func(ctx context.Context) (T, error), opts ...Option) *Handle[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	h := New[T]()
	h.dispatcher = loop.Or(o.dispatcher)
	h.report = o.report

	if !o.active() {
		h.suppress()
		return h
	}
	err := sub.Submit(func() { h.run(fn, o) })
	if err != nil {
		h.Fail(NewReason("submit rejected", CodeRejected).WithCause(err))
	}
	return h
}

func (h *Handle[T]) run(fn func(ctx context.Context) (T, error), o options) {
	if h.job.Cancelled() {
		return
	}
	if err := Checkpoint(h.ctx); err != nil {
		return
	}
	h.job.started.Store(true)

	v, err := call(h.ctx, fn)
	if !o.active() {
		h.suppress()
		return
	}
	if err != nil {
		h.Fail(ReasonOf(err))
		return
	}
	h.Succeed(v)
}

func call[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked", "panic", r)
			err = NewReason(fmt.Sprintf("panic: %v", r), CodePanic)
		}
	}()
	return fn(ctx)
}
