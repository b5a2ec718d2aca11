package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/livestore/internal/metrics"
	"github.com/roach88/livestore/internal/record"
	"github.com/roach88/livestore/internal/store"
)

var (
	// ErrClosed is returned by every operation on a closed scope.
	ErrClosed = errors.New("scope closed")
	// ErrReadOnly is returned by writes on a read scope.
	ErrReadOnly = errors.New("scope is read-only")
	// ErrWriteOnly is returned by reads on a write scope.
	ErrWriteOnly = errors.New("scope is write-only")
)

// Factory opens store handles. *store.Engine is one.
type Factory interface {
	Open(ctx context.Context, rt record.Type, owner store.Loop) (*store.Handle, error)
	CopyDepth(rt record.Type) int
}

// Kind is what a scope may do.
type Kind uint8

const (
	KindRead Kind = iota + 1
	KindWrite
	KindReadWrite
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindReadWrite:
		return "readwrite"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) readable() bool { return k == KindRead || k == KindReadWrite }
func (k Kind) writable() bool { return k == KindWrite || k == KindReadWrite }

type state uint8

const (
	stateOpen state = iota
	stateClosing
	stateClosed
)

// entry is one handle held by a scope. ownsTx is set only when this scope
// began the handle's transaction; only those are committed or canceled
// here.
type entry struct {
	rt       record.Type
	h        *store.Handle
	borrowed bool
	ownsTx   bool
}

// Scope is a unit of work over store handles, one per record type.
//
// A Scope is confined to one goroutine. Close (or Release) must run on
// every exit path; it commits the write-set and closes every handle the
// scope opened.
type Scope struct {
	kind    Kind
	factory Factory
	owner   store.Loop
	parent  *Scope
	metrics *metrics.Metrics

	mu       sync.Mutex
	state    state
	handles  map[record.Type]*entry
	writeSet []*entry
	autoTx   bool
}

// Option configures a Scope.
type Option func(*Scope)

// Within composes the scope into parent: handles parent already holds are
// borrowed, and transactions parent began are left to parent.
func Within(parent *Scope) Option {
	return func(s *Scope) { s.parent = parent }
}

// OnLoop opens handles confined to owner.
func OnLoop(owner store.Loop) Option {
	return func(s *Scope) { s.owner = owner }
}

// WithMetrics counts scopes and transactions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scope) { s.metrics = m }
}

func newScope(kind Kind, f Factory, opts []Option) *Scope {
	s := &Scope{
		kind:    kind,
		factory: f,
		handles: make(map[record.Type]*entry),
		autoTx:  kind == KindReadWrite,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parent != nil && s.owner == nil {
		s.owner = s.parent.owner
	}
	s.metrics.ScopeOpened(kind.String())
	return s
}

// NewRead opens a scope for queries and copies.
func NewRead(f Factory, opts ...Option) *Scope { return newScope(KindRead, f, opts) }

// NewWrite opens a scope for transacted mutations.
func NewWrite(f Factory, opts ...Option) *Scope { return newScope(KindWrite, f, opts) }

// NewReadWrite opens a scope that does both. Reads begin a transaction on
// their handle first, until SetAutoTransaction(false) or Commit.
func NewReadWrite(f Factory, opts ...Option) *Scope { return newScope(KindReadWrite, f, opts) }

func (s *Scope) Kind() Kind { return s.kind }

// Closed reports whether Close has finished.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateClosed
}

// SetAutoTransaction turns transaction-before-read on or off for the rest
// of a read-write scope.
func (s *Scope) SetAutoTransaction(auto bool) {
	s.mu.Lock()
	s.autoTx = auto && s.kind == KindReadWrite
	s.mu.Unlock()
}

func (s *Scope) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateOpen {
		return ErrClosed
	}
	return nil
}

// OpenHandle returns the scope's handle for rt, opening it on first use.
// A handle closed behind the scope's back is replaced.
func (s *Scope) OpenHandle(ctx context.Context, rt record.Type) (*store.Handle, error) {
	e, err := s.open(ctx, rt)
	if err != nil {
		return nil, err
	}
	return e.h, nil
}

func (s *Scope) open(ctx context.Context, rt record.Type) (*entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if e, ok := s.handles[rt]; ok {
		if !e.h.Closed() {
			s.mu.Unlock()
			return e, nil
		}
		s.dropLocked(e)
	}
	s.mu.Unlock()

	if p := s.parent; p != nil {
		if e := p.lookup(rt); e != nil {
			borrowed := &entry{rt: rt, h: e.h, borrowed: true}
			s.mu.Lock()
			s.handles[rt] = borrowed
			s.mu.Unlock()
			return borrowed, nil
		}
	}

	h, err := s.factory.Open(ctx, rt, s.owner)
	if err != nil {
		return nil, err
	}
	e := &entry{rt: rt, h: h}
	s.mu.Lock()
	s.handles[rt] = e
	s.mu.Unlock()
	return e, nil
}

// lookup returns an open handle for rt held by s or its ancestors.
func (s *Scope) lookup(rt record.Type) *entry {
	for p := s; p != nil; p = p.parent {
		p.mu.Lock()
		e, ok := p.handles[rt]
		p.mu.Unlock()
		if ok && !e.h.Closed() {
			return e
		}
	}
	return nil
}

func (s *Scope) dropLocked(e *entry) {
	delete(s.handles, e.rt)
	for i, w := range s.writeSet {
		if w == e {
			s.writeSet = append(s.writeSet[:i], s.writeSet[i+1:]...)
			break
		}
	}
}

// CloseHandle closes the handle for rt now and forgets it. Values read
// through it become invalid. A borrowed handle is only forgotten.
func (s *Scope) CloseHandle(rt record.Type) error {
	s.mu.Lock()
	e, ok := s.handles[rt]
	if ok {
		s.dropLocked(e)
	}
	s.mu.Unlock()
	if !ok || e.borrowed {
		return nil
	}
	if e.ownsTx && e.h.InTransaction() {
		s.metrics.Transaction("canceled")
	}
	return e.h.Close()
}

// transact makes sure h is in a transaction and reports whether this scope
// owns it. A transaction opened by an enclosing scope is used, not owned.
func (s *Scope) transact(ctx context.Context, rt record.Type) (*entry, error) {
	e, err := s.open(ctx, rt)
	if err != nil {
		return nil, err
	}
	if e.h.InTransaction() {
		return e, nil
	}
	if err := e.h.BeginTransaction(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if !e.ownsTx {
		s.writeSet = append(s.writeSet, e)
	}
	e.ownsTx = true
	s.mu.Unlock()
	return e, nil
}

// write runs fn on rt's handle inside a transaction. If fn fails, a
// transaction this scope owns is canceled before the error is returned.
func (s *Scope) write(ctx context.Context, rt record.Type, fn func(h *store.Handle) error) error {
	if !s.kind.writable() {
		return ErrReadOnly
	}
	e, err := s.transact(ctx, rt)
	if err != nil {
		return err
	}
	if err := fn(e.h); err != nil {
		if e.ownsTx && e.h.InTransaction() {
			s.cancel(e)
		}
		return err
	}
	return nil
}

func (s *Scope) cancel(e *entry) {
	if err := e.h.CancelTransaction(); err != nil {
		slog.Warn("cancel transaction failed", "type", e.rt, "handle", e.h.ID(), "error", err)
	}
	s.metrics.Transaction("canceled")
}

// reader opens rt's handle for a read: it begins a transaction when the
// scope auto-transacts, and otherwise refreshes free-standing handles.
func (s *Scope) reader(ctx context.Context, rt record.Type) (*store.Handle, error) {
	if !s.kind.readable() {
		return nil, ErrWriteOnly
	}
	s.mu.Lock()
	auto := s.autoTx
	s.mu.Unlock()
	if auto {
		e, err := s.transact(ctx, rt)
		if err != nil {
			return nil, err
		}
		return e.h, nil
	}

	e, err := s.open(ctx, rt)
	if err != nil {
		return nil, err
	}
	if e.h.Owner() == nil && !e.h.InTransaction() {
		if err := e.h.Refresh(); err != nil {
			return nil, err
		}
	}
	return e.h, nil
}

// Commit commits the write-set now and stops auto-transactions for the
// rest of the scope.
func (s *Scope) Commit() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !s.kind.writable() {
		return ErrReadOnly
	}
	err := s.commitAll()
	s.SetAutoTransaction(false)
	return err
}

// commitAll commits owned transactions in the order they were begun. After
// the first failure every remaining one is canceled and that failure is
// returned.
func (s *Scope) commitAll() error {
	s.mu.Lock()
	pending := s.writeSet
	s.writeSet = nil
	s.mu.Unlock()

	var firstErr error
	for _, e := range pending {
		e.ownsTx = false
		if e.h.Closed() || !e.h.InTransaction() {
			continue
		}
		if firstErr != nil {
			s.cancel(e)
			continue
		}
		if err := e.h.Commit(); err != nil {
			firstErr = err
			slog.Warn("commit failed, canceling remaining transactions", "type", e.rt, "error", err)
			s.metrics.Transaction("canceled")
			continue
		}
		s.metrics.Transaction("committed")
	}
	return firstErr
}

// cancelAll rolls back every owned transaction.
func (s *Scope) cancelAll() {
	s.mu.Lock()
	pending := s.writeSet
	s.writeSet = nil
	s.mu.Unlock()

	for _, e := range pending {
		e.ownsTx = false
		if !e.h.Closed() && e.h.InTransaction() {
			s.cancel(e)
		}
	}
}

// Close commits the write-set, then closes every handle the scope opened,
// even when a commit failed. The first commit error is returned. Closing
// twice is a no-op.
func (s *Scope) Close() error {
	return s.Release(nil)
}

// Release is Close for a unit of work that ended with cause: when cause is
// non-nil the write-set is canceled instead of committed.
func (s *Scope) Release(cause error) error {
	s.mu.Lock()
	if s.state != stateOpen {
		s.mu.Unlock()
		return nil
	}
	s.state = stateClosing
	s.mu.Unlock()

	var err error
	if cause != nil {
		s.cancelAll()
	} else {
		err = s.commitAll()
	}

	s.mu.Lock()
	handles := s.handles
	s.handles = make(map[record.Type]*entry)
	s.mu.Unlock()
	for _, e := range handles {
		if e.borrowed {
			continue
		}
		if cerr := e.h.Close(); cerr != nil {
			slog.Warn("close handle failed", "type", e.rt, "handle", e.h.ID(), "error", cerr)
			if err == nil {
				err = cerr
			}
		}
	}

	s.mu.Lock()
	s.state = stateClosed
	s.mu.Unlock()
	return err
}
