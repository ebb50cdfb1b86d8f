// Package apperr defines the coded errors surfaced to API callers.
//
// Every failure a resolver returns is an *Error. The Code is stable and is
// exposed to GraphQL clients under extensions.code; the Message is safe to
// show to an end user. Underlying causes (driver errors, etc.) are kept in
// Err for logging and are never part of Message.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	MissingFields      Code = "MISSING_FIELDS"
	InvalidKind        Code = "INVALID_KIND"
	InvalidEmail       Code = "INVALID_EMAIL"
	InvalidRole        Code = "INVALID_ROLE"
	DuplicateEmail     Code = "DUPLICATE_EMAIL"
	InvalidCredentials Code = "INVALID_CREDENTIALS"
	Unauthorized       Code = "UNAUTHORIZED"
	Forbidden          Code = "FORBIDDEN"
	NotFound           Code = "NOT_FOUND"
	IndexOutOfRange    Code = "INDEX_OUT_OF_RANGE"
	InvalidArgument    Code = "INVALID_ARGUMENT"
	RateLimited        Code = "RATE_LIMITED"
	MethodNotAllowed   Code = "METHOD_NOT_ALLOWED"
	InternalError      Code = "INTERNAL_ERROR"
)

// Error is a coded, caller-safe error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Code, so sentinels below can be used
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Extensions is read by graphql-go and merged into the error's "extensions".
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": string(e.Code)}
}

// Sentinels for errors.Is checks.
var (
	ErrMissingFields      = &Error{Code: MissingFields, Message: "missing required fields"}
	ErrInvalidKind        = &Error{Code: InvalidKind, Message: "kind must be REQUEST or OFFER"}
	ErrInvalidEmail       = &Error{Code: InvalidEmail, Message: "email address is not valid"}
	ErrInvalidRole        = &Error{Code: InvalidRole, Message: "role must be ADMIN or USER"}
	ErrDuplicateEmail     = &Error{Code: DuplicateEmail, Message: "a user with this email already exists"}
	ErrInvalidCredentials = &Error{Code: InvalidCredentials, Message: "invalid credentials"}
	ErrUnauthorized       = &Error{Code: Unauthorized, Message: "authentication required"}
	ErrTokenRejected      = &Error{Code: Unauthorized, Message: "invalid or expired token"}
	ErrForbidden          = &Error{Code: Forbidden, Message: "you do not have permission to perform this action"}
	ErrNotFound           = &Error{Code: NotFound, Message: "not found"}
	ErrIndexOutOfRange    = &Error{Code: IndexOutOfRange, Message: "index out of range"}
	ErrRateLimited        = &Error{Code: RateLimited, Message: "too many attempts, please wait and try again"}
	ErrMutationOverGet    = &Error{Code: MethodNotAllowed, Message: "mutations must use POST"}
	ErrInternal           = &Error{Code: InternalError, Message: "internal error"}
)

// New returns an *Error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps a cause as a generic InternalError. The cause is kept for
// logging only.
func Internal(err error) *Error {
	return &Error{Code: InternalError, Message: ErrInternal.Message, Err: err}
}

// CodeOf returns the Code of err, or InternalError if err is not an *Error.
// A nil error has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// Sanitize converts any error into a caller-safe *Error. Non-coded errors
// become InternalError carrying the original as cause.
func Sanitize(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
