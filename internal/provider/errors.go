package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindTimeout      Kind = "timeout"      // Request exceeded its deadline
	KindHTTP         Kind = "http"         // Non-retryable upstream status
	KindRateLimited  Kind = "rate_limited" // Local bucket rejection or upstream 429
	KindMalformed    Kind = "malformed"    // Response root shape unrecognized
	KindUnauthorized Kind = "unauthorized" // 401/403, bad or revoked key
	KindUnavailable  Kind = "unavailable"  // Transient failures exhausted retries
	KindAuthMissing  Kind = "auth_missing" // Adapter disabled, no API key configured
)

// Error is the uniform failure type surfaced by every adapter.
type Error struct {
	Provider string // Adapter name
	Kind     Kind   // Failure class
	Status   int    // HTTP status when Kind is http/rate_limited/unauthorized, else 0
	Message  string // Short human-readable detail
	Err      error  // Underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind, or "" when err is not a provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsRateLimited reports whether err is a rate limit rejection.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

// IsUnauthorized reports whether err indicates a bad or missing credential.
func IsUnauthorized(err error) bool {
	k := KindOf(err)
	return k == KindUnauthorized || k == KindAuthMissing
}

// retryable reports whether the failure is transient and worth another attempt.
func retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindUnavailable, KindMalformed:
		return true
	case KindHTTP:
		var pe *Error
		errors.As(err, &pe)
		return pe.Status >= 500
	default:
		return false
	}
}
