package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/livestore/internal/record"
)

// Row is one stored record.
type Row struct {
	Key  string
	Seq  int64
	Body []byte
}

// Handle is an open connection to one record type's collection.
//
// A Handle is not safe for concurrent use. It belongs to the goroutine
// (or loop) that opened it; only Closed may be called from elsewhere.
type Handle struct {
	id    string
	rt    record.Type
	eng   *Engine
	conn  *sql.Conn
	tx    *sql.Tx
	owner Loop

	dirty  bool
	closed atomic.Bool
	seen   int64
	lives  map[string]*Live
}

func (h *Handle) ID() string        { return h.id }
func (h *Handle) Type() record.Type { return h.rt }

// Owner returns the loop the handle is confined to, or nil.
func (h *Handle) Owner() Loop { return h.owner }

// Closed reports whether Close has run. Safe from any goroutine.
func (h *Handle) Closed() bool { return h.closed.Load() }

// InTransaction reports whether a transaction is open.
func (h *Handle) InTransaction() bool { return h.tx != nil }

// Seen is the type version this handle last refreshed to.
func (h *Handle) Seen() int64 { return h.seen }

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// db routes statements through the open transaction, if any.
func (h *Handle) db() queryer {
	if h.tx != nil {
		return h.tx
	}
	return h.conn
}

func (h *Handle) checkOpen(op string) error {
	if h.Closed() {
		return newError(ErrCodeHandleClosed, h.rt, op, nil)
	}
	return nil
}

// BeginTransaction starts a write transaction. Writers of the same type
// queue on the engine's busy timeout.
func (h *Handle) BeginTransaction(ctx context.Context) error {
	if err := h.checkOpen("begin"); err != nil {
		return err
	}
	if h.tx != nil {
		return newError(ErrCodeAlreadyInTransaction, h.rt, "begin", nil)
	}
	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", h.rt, err)
	}
	h.tx = tx
	h.dirty = false
	return nil
}

// Commit commits the open transaction and, if it changed anything, notifies
// every live result of this type.
func (h *Handle) Commit() error {
	if err := h.checkOpen("commit"); err != nil {
		return err
	}
	if h.tx == nil {
		return newError(ErrCodeNotInTransaction, h.rt, "commit", nil)
	}
	tx, dirty := h.tx, h.dirty
	h.tx, h.dirty = nil, false
	if err := tx.Commit(); err != nil {
		return newError(ErrCodeCommitFailed, h.rt, "commit", err)
	}
	if dirty {
		h.eng.changed(h.rt)
	}
	h.seen = h.eng.Version(h.rt)
	return nil
}

// CancelTransaction rolls back the open transaction.
func (h *Handle) CancelTransaction() error {
	if err := h.checkOpen("cancel"); err != nil {
		return err
	}
	if h.tx == nil {
		return newError(ErrCodeNotInTransaction, h.rt, "cancel", nil)
	}
	tx := h.tx
	h.tx, h.dirty = nil, false
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("cancel %s: %w", h.rt, err)
	}
	return nil
}

// Refresh advances the handle to the latest committed state. It is illegal
// inside a transaction and on loop-owned handles, which advance through
// change notifications.
func (h *Handle) Refresh() error {
	if err := h.checkOpen("refresh"); err != nil {
		return err
	}
	if h.tx != nil {
		return newError(ErrCodeRefreshInTransaction, h.rt, "refresh", nil)
	}
	if h.owner != nil {
		return newError(ErrCodeRefreshOnLoop, h.rt, "refresh", nil)
	}
	// Outside a transaction every statement already reads the latest
	// committed snapshot; only the bookkeeping moves.
	h.seen = h.eng.Version(h.rt)
	return nil
}

// Close rolls back any open transaction, stops live results and releases
// the connection. Closing twice is a no-op.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, l := range h.lives {
		l.stop()
	}
	h.lives = nil

	var firstErr error
	if h.tx != nil {
		if err := h.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			firstErr = fmt.Errorf("rollback %s: %w", h.rt, err)
		}
		h.tx = nil
	}
	if err := h.conn.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close %s: %w", h.rt, err)
	}
	h.eng.forget(h)
	slog.Debug("store handle closed", "type", h.rt, "handle", h.id)
	return firstErr
}
