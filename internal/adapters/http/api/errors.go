package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/athletegraph/internal/adapters/credentials"
	"github.com/okian/athletegraph/internal/adapters/graph"
	service "github.com/okian/athletegraph/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// KindError tags an error with the operation that failed and a sentinel kind.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns a KindError without a cause.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind returns a KindError around err.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// classify maps an error to an HTTP status and a response code.
func classify(err error) (int, string) {
	var ie *service.InputError
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrBatchTooLarge):
		return http.StatusUnprocessableEntity, "batch_too_large"
	case errors.Is(err, ErrBadRequest):
		return http.StatusUnprocessableEntity, "malformed_body"
	case errors.As(err, &ie):
		return http.StatusUnprocessableEntity, ie.Code
	case errors.Is(err, graph.ErrRecordRejected):
		return http.StatusUnprocessableEntity, "record_rejected"
	case errors.Is(err, graph.ErrWriteConflict):
		return http.StatusConflict, "write_conflict"
	case errors.Is(err, graph.ErrStoreConnection):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, credentials.ErrLookup):
		return http.StatusServiceUnavailable, "credentials_unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "timeout"
	default:
		return http.StatusInternalServerError, "store_error"
	}
}
