package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes. Every failure surfaced by the client maps onto one of these.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeNetwork           = "NETWORK_ERROR"
	CodeTimeout           = "TIMEOUT"
	CodeMalformedState    = "MALFORMED_STATE"
	CodeConflict          = "CONFLICT"
	CodeTurnInFlight      = "TURN_IN_FLIGHT"
	CodeEmptyMessage      = "EMPTY_MESSAGE"
	CodeNoActiveCharacter = "NO_ACTIVE_CHARACTER"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Cause      error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause records the error that triggered this one.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewValidationError creates a 400 error for rejected input
func NewValidationError(code string, message string) *AppError {
	if code == "" {
		code = CodeValidation
	}
	return NewError(http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return NewError(http.StatusUnauthorized, CodeUnauthorized, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(message string) *AppError {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(code string, message string) *AppError {
	if code == "" {
		code = CodeConflict
	}
	return NewError(http.StatusConflict, code, message)
}

// NewNetworkError reports an unreachable backend, a non-success status or an unreadable reply.
func NewNetworkError(message string, cause error) *AppError {
	return NewError(http.StatusBadGateway, CodeNetwork, message).WithCause(cause)
}

// NewTimeoutError reports a backend call that exceeded its deadline.
func NewTimeoutError(message string, cause error) *AppError {
	return NewError(http.StatusGatewayTimeout, CodeTimeout, message).WithCause(cause)
}

// NewMalformedStateError reports a persisted blob that could not be decoded.
func NewMalformedStateError(key string, cause error) *AppError {
	return NewError(http.StatusInternalServerError, CodeMalformedState,
		fmt.Sprintf("stored value %q is malformed", key)).WithCause(cause)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	if code == "" {
		code = CodeInternal
	}
	return NewError(http.StatusInternalServerError, code, message)
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is checks if err carries an AppError with the same code as target
func Is(err error, target *AppError) bool {
	if target == nil {
		return false
	}
	return HasCode(err, target.Code)
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func IsTimeout(err error) bool        { return HasCode(err, CodeTimeout) }
func IsNetwork(err error) bool        { return HasCode(err, CodeNetwork) }
func IsNotFound(err error) bool       { return HasCode(err, CodeNotFound) }
func IsMalformedState(err error) bool { return HasCode(err, CodeMalformedState) }

// IsValidation matches any 400-class input rejection.
func IsValidation(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.StatusCode == http.StatusBadRequest
}
