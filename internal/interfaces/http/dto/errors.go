package dto

import (
	"net/http"

	"github.com/erp/returns/internal/domain/shared"
)

// Transport error codes. Domain codes from shared are passed through unchanged.
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeInvalidJSON is used when the body cannot be decoded
	ErrCodeInvalidJSON = "INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeRouteNotFound is used for unknown routes
	ErrCodeRouteNotFound = "ROUTE_NOT_FOUND"
	// ErrCodeForbidden is used when the client address is not allowed
	ErrCodeForbidden = "FORBIDDEN"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// Input errors
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	shared.CodeInvalidInput: http.StatusBadRequest,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeRouteNotFound:    http.StatusNotFound,
	ErrCodeForbidden:        http.StatusForbidden,
	shared.CodeNotFound:     http.StatusNotFound,

	// Business rule errors -> 422 Unprocessable Entity
	shared.CodeValidationFailed:       http.StatusUnprocessableEntity,
	shared.CodeIncompleteData:         http.StatusUnprocessableEntity,
	shared.CodeInvalidStateTransition: http.StatusUnprocessableEntity,
	shared.CodeInsufficientStock:      http.StatusUnprocessableEntity,

	// Races with another request -> 409 Conflict
	shared.CodeAlreadyProcessed:    http.StatusConflict,
	shared.CodeConcurrencyConflict: http.StatusConflict,

	// Partial failures and infrastructure
	shared.CodeBalanceSyncFailed:  http.StatusInternalServerError,
	shared.CodeCompensationFailed: http.StatusInternalServerError,
	shared.CodeAuditWriteFailed:   http.StatusInternalServerError,
	shared.CodeServiceUnavailable: http.StatusServiceUnavailable,
	shared.CodeInternal:           http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
