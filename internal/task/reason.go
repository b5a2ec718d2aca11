package task

import (
	"errors"
	"fmt"
)

// Reason codes used by this module. Callers may use their own.
const (
	CodeUnknown  = 0
	CodePanic    = 1
	CodeRejected = 2
)

// Reason is the failure payload of a Handle.
type Reason struct {
	Message string
	Code    int
	Cause   error
}

// NewReason returns a reason without a cause.
func NewReason(message string, code int) *Reason {
	return &Reason{Message: message, Code: code}
}

// WithCause attaches err and returns r. A reason with no message borrows
// the cause's.
func (r *Reason) WithCause(err error) *Reason {
	r.Cause = err
	if r.Message == "" && err != nil {
		r.Message = err.Error()
	}
	return r
}

func (r *Reason) Error() string {
	switch {
	case r.Cause != nil && r.Message != r.Cause.Error():
		return fmt.Sprintf("%s (code %d): %v", r.Message, r.Code, r.Cause)
	case r.Message != "":
		return fmt.Sprintf("%s (code %d)", r.Message, r.Code)
	default:
		return fmt.Sprintf("failed (code %d)", r.Code)
	}
}

func (r *Reason) Unwrap() error { return r.Cause }

// ReasonOf returns the *Reason in err's chain, or wraps err in a new one.
func ReasonOf(err error) *Reason {
	if err == nil {
		return nil
	}
	var r *Reason
	if errors.As(err, &r) {
		return r
	}
	return (&Reason{Code: CodeUnknown}).WithCause(err)
}
