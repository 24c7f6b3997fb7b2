package graph

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel kinds for store errors.
var (
	ErrStoreConnection = errors.New("graph store unreachable")
	ErrWriteConflict   = errors.New("graph write conflict")
	ErrRecordRejected  = errors.New("graph store rejected record")
	ErrInvalidTS       = errors.New("invalid timestamp")
)

// StoreConnectionError means the store could not be reached.
type StoreConnectionError struct {
	Err error
}

func (e *StoreConnectionError) Error() string {
	return fmt.Sprintf("graph store connection: %v", e.Err)
}

func (e *StoreConnectionError) Unwrap() []error { return []error{ErrStoreConnection, e.Err} }

// WriteConflictError is a transient lock or deadlock failure. Writes are not
// retried; callers may resubmit.
type WriteConflictError struct {
	Code string
	Err  error
}

func (e *WriteConflictError) Error() string {
	return fmt.Sprintf("graph write conflict (%s): %v", e.Code, e.Err)
}

func (e *WriteConflictError) Unwrap() []error { return []error{ErrWriteConflict, e.Err} }

// RecordRejectedError is a record the store refused to accept, such as a
// timestamp the store cannot parse.
type RecordRejectedError struct {
	Code string
	Err  error
}

func (e *RecordRejectedError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("record rejected: %v", e.Err)
	}
	return fmt.Sprintf("record rejected (%s): %v", e.Code, e.Err)
}

func (e *RecordRejectedError) Unwrap() []error { return []error{ErrRecordRejected, e.Err} }

// ErrorKind labels err for metrics and reports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrStoreConnection):
		return "connection"
	case errors.Is(err, ErrWriteConflict):
		return "conflict"
	case errors.Is(err, ErrRecordRejected):
		return "rejected"
	default:
		return "other"
	}
}
