// Package qerrors provides structured error handling for qanoon.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index and artifact I/O errors
//   - 3XX: Embedding provider errors (network, timeout)
//   - 40X-44X: Validation errors
//   - 45X: Authorization errors
//   - 5XX: Internal errors
package qerrors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIndex indicates index artifact and I/O errors.
	CategoryIndex Category = "INDEX"
	// CategoryEmbedding indicates embedding provider errors.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryAuthorization indicates identity and role resolution errors.
	CategoryAuthorization Category = "AUTHORIZATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Index errors (200-299)
	ErrCodeIndexNotFound    = "ERR_201_INDEX_NOT_FOUND"
	ErrCodeIndexCorrupt     = "ERR_202_INDEX_CORRUPT"
	ErrCodeIndexUnavailable = "ERR_203_INDEX_UNAVAILABLE"
	ErrCodeIndexLocked      = "ERR_204_INDEX_LOCKED"

	// Embedding provider errors (300-399)
	ErrCodeEmbedTimeout     = "ERR_301_EMBED_TIMEOUT"
	ErrCodeEmbedUnavailable = "ERR_302_EMBED_UNAVAILABLE"
	ErrCodeEmbedFailed      = "ERR_303_EMBED_FAILED"

	// Validation errors (400-449)
	ErrCodeQueryEmpty        = "ERR_401_QUERY_EMPTY"
	ErrCodeInvalidQuery      = "ERR_402_INVALID_QUERY"
	ErrCodeInvalidParameter  = "ERR_403_INVALID_PARAMETER"
	ErrCodeDimensionMismatch = "ERR_404_DIMENSION_MISMATCH"

	// Authorization errors (450-499)
	ErrCodeNoRoles      = "ERR_451_NO_ROLES"
	ErrCodeUnknownToken = "ERR_452_UNKNOWN_TOKEN"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "451" from "ERR_451_NO_ROLES".
	numStr := code[4:7]

	// 45X is carved out of the validation block for authorization.
	if numStr >= "450" && numStr < "500" {
		return CategoryAuthorization
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIndex
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexCorrupt:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Provider timeouts and outages clear up on their own; everything else
// needs operator action or a different request.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedTimeout, ErrCodeEmbedUnavailable, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
