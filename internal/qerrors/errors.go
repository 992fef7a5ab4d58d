package qerrors

import (
	"fmt"
)

// QanoonError is the structured error type for qanoon.
// It provides context for error handling, logging, and user presentation.
type QanoonError struct {
	// Code is the unique error code (e.g., "ERR_401_QUERY_EMPTY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Index, Embedding, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *QanoonError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *QanoonError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, &QanoonError{Code: ...}) works
// across wrap boundaries.
func (e *QanoonError) Is(target error) bool {
	if t, ok := target.(*QanoonError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *QanoonError) WithDetail(key, value string) *QanoonError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *QanoonError) WithSuggestion(suggestion string) *QanoonError {
	e.Suggestion = suggestion
	return e
}

// New creates a new QanoonError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *QanoonError {
	return &QanoonError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a QanoonError from an existing error.
// The error's message becomes the QanoonError message.
func Wrap(code string, err error) *QanoonError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *QanoonError {
	return New(ErrCodeInvalidQuery, message, cause)
}

// IndexUnavailableError creates an error for indexes that are missing,
// closed, or not yet loaded.
func IndexUnavailableError(message string, cause error) *QanoonError {
	return New(ErrCodeIndexUnavailable, message, cause)
}

// EmbeddingError creates an embedding-provider error.
func EmbeddingError(message string, cause error) *QanoonError {
	return New(ErrCodeEmbedFailed, message, cause)
}

// AuthorizationError creates an identity/role resolution error.
func AuthorizationError(message string, cause error) *QanoonError {
	return New(ErrCodeNoRoles, message, cause)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *QanoonError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *QanoonError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QanoonError); ok {
		return qe.Retryable
	}
	return false
}

// GetCode extracts the error code from a QanoonError.
// Returns empty string if not a QanoonError.
func GetCode(err error) string {
	if qe, ok := err.(*QanoonError); ok {
		return qe.Code
	}
	return ""
}

// GetCategory extracts the category from a QanoonError.
// Returns empty string if not a QanoonError.
func GetCategory(err error) Category {
	if qe, ok := err.(*QanoonError); ok {
		return qe.Category
	}
	return ""
}

// IsCategory reports whether err is a QanoonError in the given category.
func IsCategory(err error, cat Category) bool {
	return GetCategory(err) == cat
}
