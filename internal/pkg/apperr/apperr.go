package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the recovery the caller should attempt.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthentication
	KindPermission
	KindConflict
	KindRateLimited
	KindUnavailable
	KindDomain
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindPermission:
		return "permission"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	case KindDomain:
		return "domain"
	default:
		return "internal"
	}
}

// Error is an application error with a stable machine-readable code.
// Sentinels are compared by identity, so declare them once as package vars.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a new application error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation is shorthand for a client-side input error.
func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

// Unavailable wraps a connectivity failure so callers can retry instead of re-authenticating.
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Code: "unavailable", Message: "Service temporarily unavailable", Err: err}
}

// KindOf reports the kind of err. Unknown errors are internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// CodeOf reports the code of err, or "internal_error".
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return "internal_error"
}

// MessageOf reports the fallback (English) message of err.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "Internal Server Error"
}

var (
	ErrPermissionDenied = New(KindPermission, "permission_denied", "User is Forbidden from performing this action")
	ErrNotAuthenticated = New(KindAuthentication, "not_authenticated", "Not authenticated")
	ErrInvalidScope     = New(KindPermission, "invalid_scope", "User is not associated with any company")
)
