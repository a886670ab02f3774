package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API callers
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "RESOURCE_NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeJobLocked          = "JOB_LOCKED"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeLedgerWriteFailure = "LEDGER_WRITE_FAILURE"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
)

// Kind groups error codes into the recovery classes callers act on.
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindPermission Kind = "PermissionDenied"
	KindConflict   Kind = "ConflictError"
	KindNotFound   Kind = "NotFoundError"
	KindLedger     Kind = "LedgerWriteFailure"
	KindInternal   Kind = "InternalError"
)

// AppError represents an application error with HTTP status and error code
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the recovery class of the error
func (e *AppError) Kind() Kind {
	switch e.Code {
	case CodeValidationError, CodeBadRequest:
		return KindValidation
	case CodePermissionDenied:
		return KindPermission
	case CodeConflict, CodeJobLocked:
		return KindConflict
	case CodeNotFound:
		return KindNotFound
	case CodeLedgerWriteFailure:
		return KindLedger
	default:
		return KindInternal
	}
}

// Retryable reports whether repeating the same request may succeed without caller changes.
// Validation, conflict, permission and not-found errors need a new decision first.
func (e *AppError) Retryable() bool {
	switch e.Kind() {
	case KindLedger, KindInternal:
		return true
	default:
		return false
	}
}

// WithDetail adds a single detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithDetails merges details into the error
func (e *AppError) WithDetails(details map[string]string) *AppError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// Wrap wraps an existing error
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError creates a new AppError
func NewAppError(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// ErrValidation creates a validation error. The caller can re-prompt; nothing was changed.
func ErrValidation(message string) *AppError {
	return NewAppError(CodeValidationError, message, http.StatusBadRequest)
}

// ErrNotFound creates a not found error
func ErrNotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ErrNotFoundWithID creates a not found error with ID
func ErrNotFoundWithID(resource, id string) *AppError {
	return ErrNotFound(resource).WithDetail("id", id)
}

// ErrConflict creates a conflict error
func ErrConflict(message string) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict)
}

// ErrLocked creates a conflict error naming the worker currently holding a job
func ErrLocked(jobID, holder string) *AppError {
	return NewAppError(CodeJobLocked, fmt.Sprintf("job is locked by %s", holder), http.StatusConflict).
		WithDetail("jobId", jobID).
		WithDetail("holder", holder)
}

// ErrPermissionDenied creates an error for a role-gated action attempted by an unauthorized actor
func ErrPermissionDenied(action, role string) *AppError {
	if role == "" {
		role = "anonymous"
	}
	return NewAppError(CodePermissionDenied, fmt.Sprintf("role %s may not %s", role, action), http.StatusForbidden).
		WithDetail("action", action).
		WithDetail("role", role)
}

// ErrLedgerWriteFailure creates an error for a failed downstream stock mutation
func ErrLedgerWriteFailure(productID string, err error) *AppError {
	return NewAppError(CodeLedgerWriteFailure, "stock ledger write failed", http.StatusBadGateway).
		WithDetail("productId", productID).
		Wrap(err)
}

// ErrInternal creates an internal error
func ErrInternal(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return NewAppError(CodeInternalError, message, http.StatusInternalServerError)
}

// ErrBadRequest creates a bad request error
func ErrBadRequest(message string) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest)
}

// ErrServiceUnavailable creates a service unavailable error
func ErrServiceUnavailable(service string) *AppError {
	return NewAppError(CodeServiceUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

// ErrTimeout creates a timeout error
func ErrTimeout(operation string) *AppError {
	return NewAppError(CodeTimeout, fmt.Sprintf("%s timed out", operation), http.StatusGatewayTimeout)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an AppError of the given kind
func IsKind(err error, kind Kind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind() == kind
}

// FromError converts a standard error to an AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return ErrInternal("").Wrap(err)
}
