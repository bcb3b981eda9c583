// Package errors defines the error taxonomy shared by use cases, the
// retry executor, and the HTTP layer: every error a use case returns
// either is, or wraps, one of these kinds so callers can classify it
// with errors.As instead of string matching.
package errors

import "fmt"

// ErrNotFound signals a missing row where the caller already validated
// the id shape (e.g. parsed as a UUID) but no matching row exists.
var ErrNotFound = fmt.Errorf("not found")

// ValidationError is bad input: never retried, never reaches a provider,
// surfaced as HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Retryable() bool { return false }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// SyncStatusError means a routing was not in a legal state for the
// requested transition. Non-fatal: the caller observes false/no-op and
// proceeds rather than treating it as an application error.
type SyncStatusError struct {
	Message string
}

func (e *SyncStatusError) Error() string   { return e.Message }
func (e *SyncStatusError) Retryable() bool { return false }

func NewSyncStatusError(format string, args ...interface{}) *SyncStatusError {
	return &SyncStatusError{Message: fmt.Sprintf(format, args...)}
}

// ProviderErrorKind classifies a failure returned by a Provider adapter.
type ProviderErrorKind int

const (
	// ProviderNotConfigured: missing/malformed credentials. Non-retryable;
	// marks the routing failed with no next_retry_at; HTTP 502 on
	// synchronous paths.
	ProviderNotConfigured ProviderErrorKind = iota
	// ProviderRateLimited: retryable; consumed by the retry executor's
	// backoff; does not alone trip the circuit but counts toward failures.
	ProviderRateLimited
	// ProviderAPIError4xx: non-retryable, terminal for this attempt.
	ProviderAPIError4xx
	// ProviderAPIError5xx: retryable; counted toward the circuit breaker.
	ProviderAPIError5xx
	// ProviderNetwork: connection/timeout failure; retryable.
	ProviderNetwork
)

// ProviderError is the uniform error type every Provider adapter returns
// for a failed call.
type ProviderError struct {
	Kind    ProviderErrorKind
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

// Retryable reports whether the retry executor should attempt this
// operation again (subject to its own max-attempts/circuit-breaker
// bookkeeping).
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case ProviderRateLimited, ProviderAPIError5xx, ProviderNetwork:
		return true
	default:
		return false
	}
}

func NewProviderError(kind ProviderErrorKind, format string, args ...interface{}) *ProviderError {
	return &ProviderError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Retryable is implemented by every error kind in this package so
// generic retry logic can type-assert instead of switching on type.
type Retryable interface {
	error
	Retryable() bool
}
