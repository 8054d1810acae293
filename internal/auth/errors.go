package auth

import (
	"errors"
	"net/http"
)

// ErrorKind is the machine-readable code attached to every gate and
// guard rejection. It is the value serialized in the "error" field of
// failure responses.
type ErrorKind string

const (
	KindMissingCredential ErrorKind = "MISSING_CREDENTIAL"
	KindRevokedCredential ErrorKind = "REVOKED_CREDENTIAL"
	KindExpired           ErrorKind = "EXPIRED_CREDENTIAL"
	KindMalformed         ErrorKind = "MALFORMED_CREDENTIAL"
	KindNotYetValid       ErrorKind = "CREDENTIAL_NOT_YET_VALID"
	KindIdentityNotFound  ErrorKind = "IDENTITY_NOT_FOUND"
	KindIdentityInactive  ErrorKind = "IDENTITY_INACTIVE"
	KindInsufficientRole  ErrorKind = "INSUFFICIENT_ROLE"
	KindAccessDenied      ErrorKind = "ACCESS_DENIED"
	KindInternal          ErrorKind = "INTERNAL_ERROR"
)

// Error is a typed authentication/authorization failure. Credential and
// identity kinds map to 401, authorization kinds to 403, and internal
// faults to 500 so a backing-store outage is never reported as an
// invalid credential.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is lets errors.Is match two auth errors by kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// HTTPStatus maps the error kind to its response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInsufficientRole, KindAccessDenied:
		return http.StatusForbidden
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

var (
	ErrMissingCredential = newError(KindMissingCredential, "missing bearer credential")
	ErrRevokedCredential = newError(KindRevokedCredential, "credential has been revoked")
	ErrExpired           = newError(KindExpired, "credential has expired")
	ErrMalformed         = newError(KindMalformed, "credential is malformed")
	ErrNotYetValid       = newError(KindNotYetValid, "credential is not yet valid")
	ErrIdentityNotFound  = newError(KindIdentityNotFound, "identity not found")
	ErrIdentityInactive  = newError(KindIdentityInactive, "identity is deactivated")
)
