package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates invalid startup configuration. Fatal;
	// the process must refuse to start rather than run with it.
	ErrCodeConfiguration ErrorCode = "configuration"
	// ErrCodeAuthentication indicates an identity-provider response failed
	// validation (bad assertion, failed token exchange, missing verifier).
	ErrCodeAuthentication ErrorCode = "authentication"
	// ErrCodeSession indicates the session store was unreachable or returned
	// a corrupted record. Callers treat this as "not authenticated".
	ErrCodeSession ErrorCode = "session"
	// ErrCodeCSRF indicates a missing or invalid CSRF token.
	ErrCodeCSRF ErrorCode = "csrf_invalid"
	// ErrCodeRateLimited indicates the client exceeded a request window.
	ErrCodeRateLimited ErrorCode = "rate_limited"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message, and
// optional cause. It supports error wrapping for use with errors.Is/errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Configuration creates a new Configuration error.
func Configuration(message string) *AppError {
	return &AppError{Code: ErrCodeConfiguration, Message: message}
}

// Configurationf creates a new Configuration error with formatted message.
func Configurationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Authentication creates a new Authentication error.
func Authentication(message string) *AppError {
	return &AppError{Code: ErrCodeAuthentication, Message: message}
}

// Authenticationf creates a new Authentication error with formatted message.
func Authenticationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeAuthentication, Message: fmt.Sprintf(format, args...)}
}

// Session creates a new Session error.
func Session(message string) *AppError {
	return &AppError{Code: ErrCodeSession, Message: message}
}

// CSRF creates a new CSRF error.
func CSRF(message string) *AppError {
	return &AppError{Code: ErrCodeCSRF, Message: message}
}

// RateLimited creates a new RateLimited error.
func RateLimited(message string) *AppError {
	return &AppError{Code: ErrCodeRateLimited, Message: message}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsConfiguration checks if an error is a Configuration error.
func IsConfiguration(err error) bool {
	return isCode(err, ErrCodeConfiguration)
}

// IsAuthentication checks if an error is an Authentication error.
func IsAuthentication(err error) bool {
	return isCode(err, ErrCodeAuthentication)
}

// IsSession checks if an error is a Session error.
func IsSession(err error) bool {
	return isCode(err, ErrCodeSession)
}

// IsCSRF checks if an error is a CSRF error.
func IsCSRF(err error) bool {
	return isCode(err, ErrCodeCSRF)
}

// IsRateLimited checks if an error is a RateLimited error.
func IsRateLimited(err error) bool {
	return isCode(err, ErrCodeRateLimited)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
