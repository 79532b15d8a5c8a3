// Package shared contains the error kinds used across all domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds, checked with errors.Is().
var (
	// ErrValidation marks malformed or missing input. The caller must fix it.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing roster entry or category row. Terminal.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable marks a transient failure reaching a record
	// store or usage store, including timeouts. The only retryable kind.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrRateLimited marks a denied request because the daily cap is spent.
	// It is a normal outcome, not a fault.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidFormat marks data from an upstream that does not have the
	// expected shape.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInternal marks everything else.
	ErrInternal = errors.New("internal error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "grade", "usage", "notion"
	Op      string // Operation that failed, e.g. "GetReport"
	Kind    error  // Base error kind for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches both the kind and anything in the wrapped chain.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsRateLimited checks if the error is a daily-cap denial.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// KindOf returns the base kind of err, or ErrInternal when none matches.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrRateLimited, ErrUpstreamUnavailable, ErrInvalidFormat} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// Message returns the human-readable message of the outermost DomainError,
// falling back to err.Error().
func Message(err error) string {
	var de *DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
