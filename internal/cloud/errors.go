// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error variables for request validation. They are wrapped in a
// *ValidationError so callers can match with errors.Is.
var (
	// ErrMissingEndpoint indicates the completion URL is empty.
	ErrMissingEndpoint = errors.New("API URL not configured")

	// ErrMissingAPIKey indicates the API key is empty.
	ErrMissingAPIKey = errors.New("API key not configured")

	// ErrMissingProxyURL indicates the proxy is enabled without a URL.
	ErrMissingProxyURL = errors.New("proxy enabled but no proxy URL set")

	// ErrInvalidURL indicates the endpoint or proxy URL could not be parsed.
	ErrInvalidURL = errors.New("invalid URL")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError is reported before any request is sent.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns the sentinel error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Phase identifies which wait timed out.
type Phase int

const (
	PhaseConnect Phase = iota // establishing the TCP/TLS connection
	PhaseRead                 // waiting for response headers or body
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	if p == PhaseConnect {
		return "connect timeout"
	}
	return "read timeout"
}

// TimeoutError reports a connect or read timeout.
type TimeoutError struct {
	Phase Phase
	Err   error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying network error.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Timeout always reports true so TimeoutError satisfies net.Error checks.
func (e *TimeoutError) Timeout() bool {
	return true
}

// APIError represents a non-200 response from the completion endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Body)
}

// UnknownError wraps any other failure (DNS, TLS verification, refused
// connection, malformed response).
type UnknownError struct {
	Err error
}

// Error implements the error interface.
func (e *UnknownError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the cause.
func (e *UnknownError) Unwrap() error {
	return e.Err
}

// dialTimeoutError marks a dial that ran out of its connect budget.
// Transport errors wrap it, so classify can find it with errors.As.
type dialTimeoutError struct {
	addr string
	err  error
}

func (e *dialTimeoutError) Error() string {
	return fmt.Sprintf("dial %s: %v", e.addr, e.err)
}

func (e *dialTimeoutError) Unwrap() error   { return e.err }
func (e *dialTimeoutError) Timeout() bool   { return true }
func (e *dialTimeoutError) Temporary() bool { return false }

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Kind is the coarse category of a request failure.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindTimeout
	KindAPI
	KindUnknown
)

// String returns the category name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// KindOf classifies err. A nil error is KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var (
		valErr     *ValidationError
		timeoutErr *TimeoutError
		apiErr     *APIError
	)
	switch {
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &apiErr):
		return KindAPI
	default:
		return KindUnknown
	}
}

// Describe renders err the way it is shown to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var (
		valErr     *ValidationError
		timeoutErr *TimeoutError
		apiErr     *APIError
	)
	switch {
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &timeoutErr):
		return fmt.Sprintf("Network timeout (%s): check proxy settings or resend", timeoutErr.Phase)
	case errors.As(err, &apiErr):
		return apiErr.Error()
	default:
		return "Error: " + err.Error()
	}
}

// classify converts a transport error into the request error taxonomy.
func classify(err error) error {
	var dialErr *dialTimeoutError
	if errors.As(err, &dialErr) {
		return &TimeoutError{Phase: PhaseConnect, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		// The TLS handshake shares the connect budget; net/http reports it
		// with an unexported error type.
		if strings.Contains(err.Error(), "TLS handshake timeout") {
			return &TimeoutError{Phase: PhaseConnect, Err: err}
		}
		return &TimeoutError{Phase: PhaseRead, Err: err}
	}

	return &UnknownError{Err: err}
}
