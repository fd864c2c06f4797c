package dto

import "net/http"

// API error codes use the ERR_<CATEGORY>_<DETAIL> format. Domain errors
// carry shorter internal codes and are normalized before leaving the API.

// General codes
const (
	// ErrCodeUnknown is the fallback when no better code applies
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal reports an unexpected server-side failure
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input codes
const (
	// ErrCodeBadRequest reports a malformed request
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeValidation reports a payload that failed validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeInvalidInput reports input that is well-formed but unusable
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON reports a body that could not be parsed
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Authentication codes
const (
	// ErrCodeUnauthorized reports missing or invalid credentials
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden reports a caller acting outside its merchant scope
	ErrCodeForbidden = "ERR_FORBIDDEN"
)

// Resource codes
const (
	// ErrCodeNotFound reports a missing resource
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists reports an attempt to create a duplicate
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict reports a request the current resource state rejects
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict reports an optimistic-locking failure
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule codes
const (
	// ErrCodeInvalidState reports an operation invalid for the current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeQuotaExceeded reports a merchant over its message quota
	ErrCodeQuotaExceeded = "ERR_QUOTA_EXCEEDED"
)

// Rate limiting codes
const (
	// ErrCodeRateLimited reports a caller over the request rate limit
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps API error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState: http.StatusUnprocessableEntity,

	ErrCodeQuotaExceeded: http.StatusTooManyRequests,
	ErrCodeRateLimited:   http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status for an API error code,
// defaulting to 500 for codes outside the catalog.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodeMapping translates the short codes raised by the
// domain layer into API error codes.
var domainErrorCodeMapping = map[string]string{
	"NOT_FOUND":           ErrCodeNotFound,
	"ENTRY_NOT_FOUND":     ErrCodeNotFound,
	"INSTANCE_NOT_FOUND":  ErrCodeNotFound,
	"TEMPLATE_NOT_FOUND":  ErrCodeNotFound,
	"ALREADY_EXISTS":      ErrCodeAlreadyExists,
	"REGRESSION_REJECTED": ErrCodeConflict,

	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,

	"INVALID_STATE":  ErrCodeInvalidState,
	"INVALID_STATUS": ErrCodeInvalidState,

	"INVALID_INPUT":           ErrCodeInvalidInput,
	"INVALID_MERCHANT":        ErrCodeInvalidInput,
	"INVALID_SOURCE":          ErrCodeInvalidInput,
	"INVALID_SOURCE_ORDER_ID": ErrCodeInvalidInput,
	"INVALID_PHONE":           ErrCodeInvalidInput,
	"INVALID_MESSAGE":         ErrCodeInvalidInput,
	"INVALID_INSTANCE_ID":     ErrCodeInvalidInput,
	"INVALID_ORIGIN":          ErrCodeInvalidInput,
	"VALIDATION_ERROR":        ErrCodeValidation,
	"BAD_REQUEST":             ErrCodeBadRequest,

	"UNAUTHORIZED":  ErrCodeUnauthorized,
	"INVALID_TOKEN": ErrCodeUnauthorized,

	"QUOTA_EXCEEDED": ErrCodeQuotaExceeded,

	"INTERNAL_ERROR": ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to its API form.
// Codes already in the API format, or unknown to the mapping, pass
// through unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
