package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the transport layer can pick a status code
// without knowing individual errors.
type ErrorKind string

const (
	KindValidation     ErrorKind = "VALIDATION_ERROR"
	KindAuthentication ErrorKind = "AUTHENTICATION_ERROR"
	KindAuthorization  ErrorKind = "AUTHORIZATION_ERROR"
	KindNotFound       ErrorKind = "NOT_FOUND_ERROR"
	KindDuplicate      ErrorKind = "DUPLICATE_ERROR"
	KindServer         ErrorKind = "SERVER_ERROR"
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed failure returned by core operations.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %d invalid field(s)", e.Message, len(e.Fields))
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrUserExists             = newError(KindDuplicate, "User already exists")
	ErrEmailInUse             = newError(KindDuplicate, "Email already in use")
	ErrInvalidCredentials     = newError(KindAuthentication, "Invalid email or password")
	ErrAccountInactive        = newError(KindAuthentication, "Your account has been deactivated")
	ErrTokenInvalid           = newError(KindAuthentication, "Invalid token")
	ErrTokenExpired           = newError(KindAuthentication, "Token expired")
	ErrRefreshTokenRequired   = newError(KindAuthentication, "Refresh token is required")
	ErrRefreshTokenMismatch   = newError(KindAuthentication, "Invalid or expired refresh token")
	ErrAuthenticationRequired = newError(KindAuthentication, "Not authorized, no token provided")
	ErrTokenUserNotFound      = newError(KindAuthentication, "User not found")
	ErrUserDeactivated        = newError(KindAuthentication, "User account is deactivated")
	ErrNotAuthenticated       = newError(KindAuthentication, "User not authenticated")
	ErrForbidden              = newError(KindAuthorization, "Not authorized to access this resource")
	ErrUserNotFound           = newError(KindNotFound, "User not found")
	ErrResetTokenInvalid      = newError(KindValidation, "Invalid or expired token")
)

// NewValidationError builds a validation failure carrying per-field details.
func NewValidationError(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// KindOf returns the kind of err, or KindServer when err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindServer
}
