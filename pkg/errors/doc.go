// Package errors provides structured error handling with error codes for workhive auth.
//
// This package standardizes error handling across the auth packages with typed
// error codes, structured error details, and automatic HTTP status code mapping.
// Every failure the login, token, and session packages surface to callers is an
// *Error carrying one of the codes below.
//
// # Basic Usage
//
// Creating errors with codes:
//
//	import "github.com/workhive/auth/pkg/errors"
//
//	// Create a simple error
//	err := errors.New(errors.ErrCodeInvalidCredentials, "invalid email or password")
//
//	// Create error with formatted message
//	err := errors.Newf(errors.ErrCodeInvalidInput, "invalid email: %s", email)
//
//	// Wrap an existing error
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to query identities")
//
//	// Use convenience constructors
//	err := errors.DuplicateIdentity(email)
//	err := errors.AccountLocked(lockedUntil)
//	err := errors.TokenReplayDetected()
//
// # Error Codes
//
// Generic:
//   - ErrCodeInternal
//   - ErrCodeInvalidInput
//   - ErrCodeConfiguration (fatal, construction-time only)
//   - ErrCodeRateLimitExceeded
//
// Identity:
//   - ErrCodeDuplicateIdentity
//   - ErrCodeIdentityNotFound
//   - ErrCodeAccountLocked
//   - ErrCodeEmailNotVerified
//
// Credentials:
//   - ErrCodeInvalidCredentials
//   - ErrCodeStaleCredentials
//   - ErrCodePasswordPolicy
//
// Two-factor:
//   - ErrCodeInvalidTwoFactorCode
//   - ErrCodeTwoFactorAlreadyEnabled
//
// Tokens:
//   - ErrCodeTokenRevoked
//   - ErrCodeTokenReplayDetected
//   - ErrCodeInvalidOrExpiredToken
//
// # Checking Errors
//
// Inspect codes without type assertions at call sites:
//
//	if errors.IsCode(err, errors.ErrCodeAccountLocked) {
//		// fail fast, do not count the attempt
//	}
//
//	switch errors.GetCode(err) {
//	case errors.ErrCodeTokenRevoked, errors.ErrCodeStaleCredentials:
//		// force re-authentication
//	}
//
// # HTTP Mapping
//
// API handlers translate errors to responses with HTTPStatusCode:
//
//	var authErr *errors.Error
//	if stderrors.As(err, &authErr) {
//		w.WriteHeader(authErr.HTTPStatusCode())
//	}
//
// Codes map to 400/401/403/404/409/423/429 and default to 500.
package errors
