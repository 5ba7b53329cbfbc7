// Package errors provides typed errors for the broker tool servers.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error cases.
var (
	// ErrMissingCredentials indicates a credential or base URL was not configured.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrNotAuthenticated indicates an operation ran without a session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthentication indicates the broker rejected the login.
	ErrAuthentication = errors.New("authentication failed")

	// ErrReauthenticationFailed indicates the session expired and could not be renewed.
	ErrReauthenticationFailed = errors.New("re-authentication failed")

	// ErrValidation indicates a validation error.
	ErrValidation = errors.New("validation error")

	// ErrUpstream indicates the broker answered with a non-success status.
	ErrUpstream = errors.New("upstream error")

	// ErrTransport indicates the request never produced a response.
	ErrTransport = errors.New("transport error")

	// ErrNotFound indicates a resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimit indicates too many requests.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrTradeLimit indicates the daily trade cap was reached.
	ErrTradeLimit = errors.New("daily trade limit reached")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")
)

// AppError is a structured application error.
type AppError struct {
	// Type is the error type (sentinel error).
	Type error
	// Message is the user-facing error message.
	Message string
	// Details contains additional error details.
	Details map[string]any
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error type.
func (e *AppError) Unwrap() error {
	return e.Type
}

// Is checks if this error matches the target.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Type, target)
}

// New creates a new AppError.
func New(errType error, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(errType error, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// WithDetails adds details to an AppError.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// Validation creates a validation error.
func Validation(message string) *AppError {
	return &AppError{
		Type:    ErrValidation,
		Message: message,
	}
}

// Validationf creates a validation error with formatting.
func Validationf(format string, args ...any) *AppError {
	return Validation(fmt.Sprintf(format, args...))
}

// ValidationField creates a validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Type:    ErrValidation,
		Message: message,
		Details: map[string]any{"field": field},
	}
}

// MissingCredentials creates a configuration error naming the missing fields.
func MissingCredentials(fields ...string) *AppError {
	return &AppError{
		Type:    ErrMissingCredentials,
		Message: "Missing required credentials",
		Details: map[string]any{"missing": fields},
	}
}

// NotAuthenticated creates a not-authenticated error.
func NotAuthenticated(message string) *AppError {
	if message == "" {
		message = "Not authenticated"
	}
	return &AppError{
		Type:    ErrNotAuthenticated,
		Message: message,
	}
}

// Upstream creates an error for a non-success broker response.
// The raw body is kept for diagnosis.
func Upstream(message string, status int, body string) *AppError {
	return &AppError{
		Type:    ErrUpstream,
		Message: fmt.Sprintf("%s: %d", message, status),
		Details: map[string]any{
			"status_code": status,
			"details":     body,
		},
	}
}

// Transport wraps a network failure.
func Transport(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrTransport,
		Message: message,
		Cause:   cause,
	}
}

// Internal creates an internal error.
func Internal(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrInternal,
		Message: message,
		Cause:   cause,
	}
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotAuthenticated checks if an error is a not-authenticated error.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

// IsUpstream checks if an error came from a broker response.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Details != nil {
		if code, ok := appErr.Details["status_code"].(int); ok {
			return code
		}
	}
	return 0
}

// Envelope converts an error into the map returned to tool callers.
// Details are merged next to the "error" key.
func Envelope(err error) map[string]any {
	if err == nil {
		return nil
	}
	out := map[string]any{"error": err.Error()}

	var appErr *AppError
	if errors.As(err, &appErr) {
		for k, v := range appErr.Details {
			if k == "error" {
				continue
			}
			out[k] = v
		}
	}
	return out
}
