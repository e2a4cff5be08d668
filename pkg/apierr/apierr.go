// Package apierr defines the error taxonomy shared by the broker, the
// upstream Shopify clients and the HTTP handlers. Route handlers map these
// to a status code and a `{"error": message}` body at the boundary; nothing
// internal (stack traces, upstream URLs) ever reaches the caller.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError: malformed caller input. Raised before any network I/O.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ConfigurationError: a required secret or setting is missing. The specific
// operation fails; the process keeps running.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// AuthError: credential rejected or expired by the identity provider.
// Status and Body carry the upstream response when one was received.
type AuthError struct {
	Msg    string
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %d %s", e.Msg, e.Status, e.Body)
	}
	return e.Msg
}

// ForbiddenError: authenticated but not entitled to the target resource.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

// NotFoundError: the target resource does not exist upstream.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// UpstreamError: non-2xx from a downstream API, or GraphQL-level userErrors.
// CallerFault distinguishes input-attributable failures (400) from
// platform/network faults (500).
type UpstreamError struct {
	Msg         string
	Status      int
	Body        string
	CallerFault bool
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %d %s", e.Msg, e.Status, e.Body)
	}
	return e.Msg
}

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func Configuration(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error {
	return &ForbiddenError{Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// Status maps an error to the HTTP status the boundary should answer with.
func Status(err error) int {
	var (
		ve *ValidationError
		ce *ConfigurationError
		ae *AuthError
		fe *ForbiddenError
		ne *NotFoundError
		ue *UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ae):
		return http.StatusUnauthorized
	case errors.As(err, &fe):
		return http.StatusForbidden
	case errors.As(err, &ne):
		return http.StatusNotFound
	case errors.As(err, &ue):
		if ue.CallerFault {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case errors.As(err, &ce):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
