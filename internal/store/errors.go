package store

import (
	"errors"
	"fmt"

	"github.com/roach88/livestore/internal/record"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeOpenFailed means the type's database could not be opened or
	// is not a usable store. Callers should not retry.
	ErrCodeOpenFailed ErrorCode = "OPEN_FAILED"

	// ErrCodeHandleClosed means an operation ran on a closed handle.
	ErrCodeHandleClosed ErrorCode = "HANDLE_CLOSED"

	// ErrCodeNotInTransaction means a mutation ran outside a transaction.
	ErrCodeNotInTransaction ErrorCode = "NOT_IN_TRANSACTION"

	// ErrCodeAlreadyInTransaction means BeginTransaction ran twice.
	ErrCodeAlreadyInTransaction ErrorCode = "ALREADY_IN_TRANSACTION"

	// ErrCodeRefreshInTransaction means Refresh ran inside a transaction.
	ErrCodeRefreshInTransaction ErrorCode = "REFRESH_IN_TRANSACTION"

	// ErrCodeRefreshOnLoop means Refresh ran on a loop-owned handle, whose
	// view is advanced by change notifications instead.
	ErrCodeRefreshOnLoop ErrorCode = "REFRESH_ON_LOOP"

	// ErrCodeNoEventLoop means Watch ran on a handle with no owning loop.
	ErrCodeNoEventLoop ErrorCode = "NO_EVENT_LOOP"

	// ErrCodeCommitFailed means the transaction could not be committed.
	ErrCodeCommitFailed ErrorCode = "COMMIT_FAILED"
)

// Error is returned by every Engine and Handle operation that fails for a
// store-level reason.
type Error struct {
	Code ErrorCode
	Type record.Type
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Code, e.Op, e.Type)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, rt record.Type, op string, err error) *Error {
	return &Error{Code: code, Type: rt, Op: op, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsOpenFailed reports whether err is a store-open failure.
// Uses errors.As to handle wrapped errors.
func IsOpenFailed(err error) bool {
	return CodeOf(err) == ErrCodeOpenFailed
}

// IsHandleClosed reports whether err came from a closed handle.
func IsHandleClosed(err error) bool {
	return CodeOf(err) == ErrCodeHandleClosed
}
