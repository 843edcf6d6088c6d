// Package errs holds the error kinds shared by the webhook and call paths.
// Callers wrap one of these sentinels around the cause and branch with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth is returned when a signature or verify token does not match.
	ErrAuth = errors.New("authentication failed")

	// ErrMalformedPayload is returned when a payload cannot be parsed.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrDownstreamUnavailable is returned when a send, dial, record or
	// generate call fails.
	ErrDownstreamUnavailable = errors.New("downstream unavailable")

	// ErrNotInitialized is returned by components whose credentials were not
	// configured at startup.
	ErrNotInitialized = errors.New("not initialized")
)

// Downstream wraps cause as ErrDownstreamUnavailable under op.
func Downstream(op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, ErrDownstreamUnavailable)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDownstreamUnavailable, cause)
}

// Malformed wraps cause as ErrMalformedPayload under op.
func Malformed(op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, ErrMalformedPayload)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrMalformedPayload, cause)
}

// NotInitialized reports that component has no credentials.
func NotInitialized(component string) error {
	return fmt.Errorf("%s: %w", component, ErrNotInitialized)
}

// Kind returns a short label for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrDownstreamUnavailable):
		return "downstream_unavailable"
	default:
		return "unknown"
	}
}
