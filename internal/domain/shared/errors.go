package shared

import "errors"

// Error codes used across the return lifecycle
const (
	CodeNotFound               = "NOT_FOUND"
	CodeIncompleteData         = "INCOMPLETE_DATA"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeAlreadyProcessed       = "ALREADY_PROCESSED"
	CodeConcurrencyConflict    = "CONCURRENCY_CONFLICT"
	CodeAuditWriteFailed       = "AUDIT_WRITE_FAILED"
	CodeBalanceSyncFailed      = "BALANCE_SYNC_FAILED"
	CodeCompensationFailed     = "COMPENSATION_FAILED"
	CodeServiceUnavailable     = "SERVICE_UNAVAILABLE"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code.
// This lets errors.Is(err, shared.ErrNotFound) match errors created with NewDomainError.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error carrying an underlying cause
func WrapDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode extracts the domain error code from err, or "" if err is not a DomainError
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries the given domain error code
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrIncompleteData         = NewDomainError(CodeIncompleteData, "Resource data is incomplete")
	ErrInvalidInput           = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidStateTransition = NewDomainError(CodeInvalidStateTransition, "Transition not allowed from current status")
	ErrInsufficientStock      = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrAlreadyProcessed       = NewDomainError(CodeAlreadyProcessed, "Resource was already processed by another request")
	ErrConcurrencyConflict    = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrServiceUnavailable     = NewDomainError(CodeServiceUnavailable, "Dependent service is unavailable")
)
