package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for transport mapping
type ErrorKind string

const (
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindBadRequest ErrorKind = "BAD_REQUEST"
	KindConflict   ErrorKind = "CONFLICT"
	KindInternal   ErrorKind = "INTERNAL"
)

// Error is a domain error carrying a user-facing message
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err with a message safe to show to callers
func Internal(err error, message string) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// Wrap attaches a cause to a domain error, keeping its kind and message
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: err}
}

// KindOf returns the kind of the first domain error in err's chain
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Sentinel errors shared by the ledger, position and order packages
var (
	ErrInsufficientFunds    = errors.New("insufficient available cash")
	ErrInsufficientPosition = errors.New("insufficient position quantity")
	ErrConcurrentUpdate     = errors.New("row modified by a concurrent transaction")
	ErrOrderNotPending      = errors.New("order is not pending")
)
