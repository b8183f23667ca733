package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error category. It is rendered as the "code"
// field of API error responses.
type Kind string

const (
	KindInvalidToken       Kind = "INVALID_TOKEN"
	KindExpiredToken       Kind = "EXPIRED_TOKEN"
	KindTokenKindMismatch  Kind = "TOKEN_KIND_MISMATCH"
	KindCredentialMismatch Kind = "CREDENTIAL_MISMATCH"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindNotAMember         Kind = "NOT_A_MEMBER"
	KindAlreadyMember      Kind = "ALREADY_MEMBER"
	KindLastOwnerViolation Kind = "LAST_OWNER_VIOLATION"
	KindConflict           Kind = "CONFLICT"
	KindBadRequest         Kind = "BAD_REQUEST"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindInternal           Kind = "INTERNAL"
)

var statusByKind = map[Kind]int{
	KindInvalidToken:       http.StatusUnauthorized,
	KindExpiredToken:       http.StatusUnauthorized,
	KindTokenKindMismatch:  http.StatusUnauthorized,
	KindCredentialMismatch: http.StatusUnauthorized,
	KindUnauthorized:       http.StatusUnauthorized,
	KindForbidden:          http.StatusForbidden,
	KindNotFound:           http.StatusNotFound,
	KindNotAMember:         http.StatusNotFound,
	KindAlreadyMember:      http.StatusConflict,
	KindLastOwnerViolation: http.StatusConflict,
	KindConflict:           http.StatusConflict,
	KindBadRequest:         http.StatusBadRequest,
	KindRateLimited:        http.StatusTooManyRequests,
	KindInternal:           http.StatusInternalServerError,
}

// AppError represents a standardized application error
type AppError struct {
	Code    int               `json:"-"`
	Kind    Kind              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"` // Internal error for logging
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the internal cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *AppError of the same Kind, so callers can
// write errors.Is(err, apperrors.ErrExpiredToken).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a new AppError
func New(kind Kind, message string, err error) *AppError {
	code, ok := statusByKind[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// WithDetails attaches key/value context shown to the client.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Sentinels for errors.Is comparisons. Only the Kind is compared.
var (
	ErrInvalidToken       = &AppError{Kind: KindInvalidToken}
	ErrExpiredToken       = &AppError{Kind: KindExpiredToken}
	ErrTokenKindMismatch  = &AppError{Kind: KindTokenKindMismatch}
	ErrCredentialMismatch = &AppError{Kind: KindCredentialMismatch}
	ErrForbidden          = &AppError{Kind: KindForbidden}
	ErrNotFound           = &AppError{Kind: KindNotFound}
	ErrNotAMember         = &AppError{Kind: KindNotAMember}
	ErrAlreadyMember      = &AppError{Kind: KindAlreadyMember}
	ErrLastOwnerViolation = &AppError{Kind: KindLastOwnerViolation}
	ErrConflict           = &AppError{Kind: KindConflict}
	ErrBadRequest         = &AppError{Kind: KindBadRequest}
)

// NotFound creates a 404 error
func NotFound(message string) *AppError {
	return New(KindNotFound, message, nil)
}

// BadRequest creates a 400 error
func BadRequest(message string) *AppError {
	return New(KindBadRequest, message, nil)
}

// Conflict creates a 409 error
func Conflict(message string) *AppError {
	return New(KindConflict, message, nil)
}

// Forbidden creates a 403 error
func Forbidden(message string) *AppError {
	return New(KindForbidden, message, nil)
}

// Internal creates a 500 error
func Internal(err error) *AppError {
	return New(KindInternal, "Internal Server Error", err)
}

// RateLimited creates a 429 error
func RateLimited(message string) *AppError {
	return New(KindRateLimited, message, nil)
}

// Unauthorized creates a 401 error
func Unauthorized(message string) *AppError {
	return New(KindUnauthorized, message, nil)
}

// InvalidToken reports a token with a bad signature or malformed payload.
func InvalidToken(message string, err error) *AppError {
	return New(KindInvalidToken, message, err)
}

// ExpiredToken reports a correctly signed token past its exp.
func ExpiredToken(message string) *AppError {
	return New(KindExpiredToken, message, nil)
}

// CredentialMismatch is returned for every failed login, whether or not the
// identifier exists.
func CredentialMismatch() *AppError {
	return New(KindCredentialMismatch, "invalid email or password", nil)
}

// As returns the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	if appErr, ok := As(err); ok && appErr.Code != 0 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
