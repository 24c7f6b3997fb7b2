package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/athletegraph/pkg/metrics"
)

// HTTP status code constants.
const (
	statusBadRequest    = 400
	statusUnauthorized  = 401
	statusNotFound      = 404
	statusConflict      = 409
	statusUnprocessable = 422
	statusInternalError = 500
	statusUnavailable   = 503
)

// CORS header names and values.
const (
	corsPreflightMaxAge = "600"
	corsAllowedMethods  = "GET, POST, OPTIONS"
	corsAllowedHeaders  = "Content-Type, X-API-Key, X-Request-ID"
	headerOrigin        = "Origin"
	headerRequestMethod = "Access-Control-Request-Method"
	headerVary          = "Vary"
	headerAllowOrigin   = "Access-Control-Allow-Origin"
	headerAllowMethods  = "Access-Control-Allow-Methods"
	headerAllowHeaders  = "Access-Control-Allow-Headers"
	headerMaxAge        = "Access-Control-Max-Age"
)

// headerRequestID carries the request id in both directions.
const headerRequestID = "X-Request-ID"

// maxRequestIDLen bounds caller-supplied ids; longer ones are replaced.
const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestID echoes the caller's X-Request-ID or assigns a new UUID, sets it
// on the response and stores it in the request context.
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	}
}

// RequestIDFrom returns the id set by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		statusCodeStr := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)

		if wrapped.statusCode >= statusBadRequest {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, getErrorType(wrapped.statusCode))
		}
	}
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode == statusUnavailable:
		return "unavailable"
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusUnauthorized:
		return "unauthorized"
	case statusCode == statusConflict:
		return "conflict"
	case statusCode == statusUnprocessable:
		return "invalid"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

// CORS answers browser preflights and tags responses for allowed origins.
// Credentials are never allowed.
type CORS struct {
	origins map[string]struct{}
	any     bool
}

// NewCORS builds a CORS policy. "*" allows every origin.
func NewCORS(origins []string) *CORS {
	c := &CORS{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			c.any = true
			continue
		}
		if o != "" {
			c.origins[o] = struct{}{}
		}
	}
	return c
}

// Allowed reports whether origin may read responses.
func (c *CORS) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if c.any {
		return true
	}
	_, ok := c.origins[origin]
	return ok
}

// Wrap applies the policy in front of next.
func (c *CORS) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get(headerOrigin)
		if origin != "" {
			w.Header().Add(headerVary, headerOrigin)
		}
		allowed := c.Allowed(origin)
		if allowed {
			if c.any {
				w.Header().Set(headerAllowOrigin, "*")
			} else {
				w.Header().Set(headerAllowOrigin, origin)
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get(headerRequestMethod) != "" {
			if allowed {
				w.Header().Set(headerAllowMethods, corsAllowedMethods)
				w.Header().Set(headerAllowHeaders, corsAllowedHeaders)
				w.Header().Set(headerMaxAge, corsPreflightMaxAge)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}
