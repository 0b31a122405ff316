package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes shared across the auth packages
const (
	// Generic errors
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeConfiguration     ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Identity errors
	ErrCodeDuplicateIdentity ErrorCode = "DUPLICATE_IDENTITY"
	ErrCodeIdentityNotFound  ErrorCode = "IDENTITY_NOT_FOUND"
	ErrCodeAccountLocked     ErrorCode = "ACCOUNT_LOCKED"
	ErrCodeEmailNotVerified  ErrorCode = "EMAIL_NOT_VERIFIED"

	// Credential errors
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeStaleCredentials   ErrorCode = "STALE_CREDENTIALS"
	ErrCodePasswordPolicy     ErrorCode = "PASSWORD_POLICY_VIOLATION"

	// Two-factor errors
	ErrCodeInvalidTwoFactorCode    ErrorCode = "INVALID_TWO_FACTOR_CODE"
	ErrCodeTwoFactorAlreadyEnabled ErrorCode = "TWO_FACTOR_ALREADY_ENABLED"

	// Token errors
	ErrCodeTokenRevoked          ErrorCode = "TOKEN_REVOKED"
	ErrCodeTokenReplayDetected   ErrorCode = "TOKEN_REPLAY_DETECTED"
	ErrCodeInvalidOrExpiredToken ErrorCode = "INVALID_OR_EXPIRED_TOKEN"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an existing error with code and formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetDetails extracts the details from an error
// Returns nil if the error is not a structured Error
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	// 400 Bad Request
	case ErrCodeInvalidInput, ErrCodePasswordPolicy:
		return http.StatusBadRequest

	// 401 Unauthorized
	case ErrCodeInvalidCredentials, ErrCodeInvalidTwoFactorCode,
		ErrCodeInvalidOrExpiredToken, ErrCodeTokenRevoked,
		ErrCodeTokenReplayDetected, ErrCodeStaleCredentials:
		return http.StatusUnauthorized

	// 403 Forbidden
	case ErrCodeEmailNotVerified:
		return http.StatusForbidden

	// 404 Not Found
	case ErrCodeIdentityNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case ErrCodeDuplicateIdentity, ErrCodeTwoFactorAlreadyEnabled:
		return http.StatusConflict

	// 423 Locked
	case ErrCodeAccountLocked:
		return http.StatusLocked

	// 429 Too Many Requests
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 500 Internal Server Error (default)
	case ErrCodeInternal, ErrCodeConfiguration:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors for frequently used errors

// DuplicateIdentity creates a "duplicate identity" error for an email address
func DuplicateIdentity(email string) *Error {
	return Newf(ErrCodeDuplicateIdentity, "identity already exists for %s", email)
}

// IdentityNotFound creates an "identity not found" error
func IdentityNotFound(identifier string) *Error {
	return Newf(ErrCodeIdentityNotFound, "identity not found: %s", identifier)
}

// InvalidCredentials creates an "invalid credentials" error
func InvalidCredentials() *Error {
	return New(ErrCodeInvalidCredentials, "invalid email or password")
}

// AccountLocked creates an "account locked" error with the unlock time attached
func AccountLocked(until time.Time) *Error {
	return New(ErrCodeAccountLocked, "account is temporarily locked").
		WithDetail("locked_until", until)
}

// InvalidTwoFactorCode creates an "invalid two-factor code" error
func InvalidTwoFactorCode() *Error {
	return New(ErrCodeInvalidTwoFactorCode, "invalid two-factor code")
}

// TokenRevoked creates a "token revoked" error
func TokenRevoked() *Error {
	return New(ErrCodeTokenRevoked, "token has been revoked")
}

// TokenReplayDetected creates a "token replay detected" error
func TokenReplayDetected() *Error {
	return New(ErrCodeTokenReplayDetected, "refresh token reuse detected")
}

// StaleCredentials creates a "stale credentials" error for tokens issued
// before the identity's last credential change
func StaleCredentials() *Error {
	return New(ErrCodeStaleCredentials, "token issued before last credential change")
}

// InvalidOrExpiredToken creates an "invalid or expired token" error
func InvalidOrExpiredToken() *Error {
	return New(ErrCodeInvalidOrExpiredToken, "token is invalid or expired")
}

// Configuration creates a fatal configuration error
func Configuration(message string) *Error {
	return New(ErrCodeConfiguration, message)
}

// InvalidInput creates an "invalid input" error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason))
}

// Internal wraps an unexpected error
func Internal(err error) *Error {
	return Wrap(err, ErrCodeInternal, "internal error")
}
