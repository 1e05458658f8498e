package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION_ERROR"
	KindIO            ErrorKind = "IO_ERROR"
	KindConfiguration ErrorKind = "CONFIGURATION_ERROR"
	KindTimeout       ErrorKind = "TIMEOUT_ERROR"
)

// ErrEmptyFilter is returned when a delete is requested without a condition.
var ErrEmptyFilter = errors.New("delete requires at least one filter condition")

// Error carries the failure class so callers can decide between reporting,
// swallowing into a safe default, or aborting.
type Error struct {
	Kind   ErrorKind
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(kind ErrorKind, op, reason string, err error) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason, Err: err}
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
