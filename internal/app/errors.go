package service

import (
	"errors"
	"fmt"
)

// Sentinel kinds for gateway errors.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidInput    = errors.New("invalid input")
	ErrBatchTooLarge   = errors.New("batch too large")
	ErrNoReader        = errors.New("no graph reader configured")
	ErrNoAthleteWriter = errors.New("store cannot upsert athletes")
	ErrMissingCreds    = errors.New("missing store credentials")
)

// AuthenticationError is a missing or unknown credential.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string { return "authentication failed: " + e.Reason }

func (e *AuthenticationError) Unwrap() error { return ErrUnauthenticated }

// InputError is a payload rejected before it reached the store. Code is a
// short machine label for API responses.
type InputError struct {
	Code string
	Err  error
}

func (e *InputError) Error() string { return fmt.Sprintf("invalid input: %v", e.Err) }

func (e *InputError) Unwrap() []error { return []error{ErrInvalidInput, e.Err} }
