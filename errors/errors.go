// Package errors defines the domain error taxonomy shared by every service in
// this core. Callers branch on the Kind, the excluded transport layer maps the
// Status, and the Message is always safe to show externally.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable code of a domain or infrastructure error.
type Kind string

const (
	KindInvalidCredentials       Kind = "invalid_credentials"
	KindUnauthorized             Kind = "unauthorized"
	KindEmailAlreadyInUse        Kind = "email_already_in_use"
	KindUserNotFound             Kind = "user_not_found"
	KindTokenExpired             Kind = "token_expired"
	KindTokenInvalid             Kind = "token_invalid"
	KindTokenRequired            Kind = "token_required"
	KindWrongPurpose             Kind = "wrong_token_purpose"
	KindInvalidRefreshToken      Kind = "invalid_refresh_token"
	KindClientNotFound           Kind = "client_not_found"
	KindInvalidClientCredentials Kind = "invalid_client_credentials"
	KindInvalidRedirectURI       Kind = "invalid_redirect_uri"
	KindInvalidScope             Kind = "invalid_scope"
	KindProviderNotConfigured    Kind = "provider_not_configured"
	KindMissingAuthCode          Kind = "missing_auth_code"
	KindOAuthError               Kind = "oauth_error"
	KindEmailRequired            Kind = "email_required"
	KindUpstreamUnavailable      Kind = "upstream_unavailable"
	KindTimeout                  Kind = "timeout"
	KindInternal                 Kind = "internal_error"
)

// statusByKind carries the HTTP-like severity the transport layer maps from.
var statusByKind = map[Kind]int{
	KindInvalidCredentials:       http.StatusUnauthorized,
	KindUnauthorized:             http.StatusForbidden,
	KindEmailAlreadyInUse:        http.StatusConflict,
	KindUserNotFound:             http.StatusNotFound,
	KindTokenExpired:             http.StatusUnauthorized,
	KindTokenInvalid:             http.StatusUnauthorized,
	KindTokenRequired:            http.StatusUnauthorized,
	KindWrongPurpose:             http.StatusUnauthorized,
	KindInvalidRefreshToken:      http.StatusUnauthorized,
	KindClientNotFound:           http.StatusNotFound,
	KindInvalidClientCredentials: http.StatusUnauthorized,
	KindInvalidRedirectURI:       http.StatusBadRequest,
	KindInvalidScope:             http.StatusBadRequest,
	KindProviderNotConfigured:    http.StatusBadRequest,
	KindMissingAuthCode:          http.StatusBadRequest,
	KindOAuthError:               http.StatusBadGateway,
	KindEmailRequired:            http.StatusBadRequest,
	KindUpstreamUnavailable:      http.StatusBadGateway,
	KindTimeout:                  http.StatusGatewayTimeout,
	KindInternal:                 http.StatusInternalServerError,
}

// Error is the single error type crossing package boundaries in this core.
type Error struct {
	Kind    Kind   `json:"error"`
	Status  int    `json:"-"`
	Message string `json:"error_description,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match two *Error values by Kind, so sentinel comparisons
// keep working after wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// E builds a new domain error of the given kind.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Status: statusFor(kind), Message: message}
}

// Wrap builds a domain error that records its upstream cause. The cause is
// for logs only; Error() never exposes it.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Status: statusFor(kind), Message: message, cause: cause}
}

func statusFor(kind Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// KindOf extracts the Kind from any error chain. Unclassified errors report
// KindInternal so they surface as a safe generic failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether the error is an infrastructure failure the
// caller may retry, as opposed to a domain rejection.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindUpstreamUnavailable, KindTimeout:
		return true
	}
	return false
}
