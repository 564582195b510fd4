// Package errors classifies bucket API failures for the client SDK so the
// shard executor can decide what to retry.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory determines how errors should be handled by retry logic.
type ErrorCategory int

const (
	// Recoverable errors may be retried with exponential backoff.
	Recoverable ErrorCategory = iota
	// Irrecoverable errors fail immediately.
	Irrecoverable
)

func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Sentinels callers compare against with errors.Is.
var (
	ErrValidation      = errors.New("invalid request")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrNotFound        = errors.New("not found")
	ErrNoActivities    = errors.New("bucket has no activities")
	ErrUnavailable     = errors.New("service unavailable")
)

// ClassifiedError wraps an error with categorization metadata for retry policies.
type ClassifiedError struct {
	Category   ErrorCategory
	StatusCode int    // 0 for non-HTTP errors
	Message    string // server supplied message, if any
	Underlying error
}

func (e *ClassifiedError) Error() string {
	msg := fmt.Sprintf("%v", e.Underlying)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %s", e.Category, e.StatusCode, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Category, msg)
}

func (e *ClassifiedError) Unwrap() error { return e.Underlying }

// Is maps the HTTP status onto the sentinel set.
func (e *ClassifiedError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest
	case ErrUnauthenticated:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrNoActivities:
		return e.StatusCode == http.StatusUnprocessableEntity
	case ErrUnavailable:
		return e.StatusCode == 0 || e.StatusCode >= 500
	}
	return false
}

// IsIrrecoverable reports whether err must not be retried.
func IsIrrecoverable(err error) bool {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category == Irrecoverable
	}
	return false
}
