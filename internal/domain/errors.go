package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AppError represents a domain-specific error with structured information and context
type AppError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Details    any       `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	Operation  string    `json:"operation,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error wrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

type contextKey string

// RequestIDKey is the context key under which the HTTP adapter stores the request id
const RequestIDKey contextKey = "request_id"

// WithContext adds context information to the error
func (e *AppError) WithContext(ctx context.Context, operation string) *AppError {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		e.RequestID = id
	}
	e.Operation = operation
	return e
}

// Error codes for different error categories
const (
	ErrInvalidInput     = "INVALID_INPUT"     // 400
	ErrValidationFailed = "VALIDATION_FAILED" // 422
	ErrNotFound         = "NOT_FOUND"         // 404
	ErrConflict         = "CONFLICT"          // 409
	ErrInternal         = "INTERNAL_ERROR"    // 500
	ErrTimeout          = "TIMEOUT"           // 408
	ErrRateLimit        = "RATE_LIMIT"        // 429
	ErrTooLarge         = "PAYLOAD_TOO_LARGE" // 413

	// Detection
	ErrNoDescriptor        = "DETECTION_NO_DESCRIPTOR"        // 404
	ErrAmbiguousDescriptor = "DETECTION_AMBIGUOUS_DESCRIPTOR" // 409
	ErrMalformedMetadata   = "DETECTION_MALFORMED"            // 422

	// Planning
	ErrInvalidName  = "PLAN_INVALID_NAME" // 422
	ErrUnresolvable = "PLAN_UNRESOLVABLE" // 422
	ErrPlanConflict = "PLAN_CONFLICT"     // 409

	// Execution
	ErrBackupIO          = "BACKUP_IO_FAILURE"   // 500
	ErrApplyFailed       = "APPLY_FAILED"        // 500
	ErrRollbackFailed    = "ROLLBACK_FAILED"     // 500
	ErrSessionInProgress = "SESSION_IN_PROGRESS" // 409
)

// NewAppError creates a new AppError with the specified parameters
func NewAppError(code, message string, statusCode int, details any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
		Timestamp:  time.Now(),
	}
}

// NewAppErrorWithCause creates a new AppError with underlying cause
func NewAppErrorWithCause(code, message string, statusCode int, cause error, details any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

// CodeOf returns the AppError code anywhere in err's chain, or "" if there is none
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode checks whether err carries the given code
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsDetectionError checks if the error came from project detection
func IsDetectionError(err error) bool {
	switch CodeOf(err) {
	case ErrNoDescriptor, ErrAmbiguousDescriptor, ErrMalformedMetadata:
		return true
	}
	return false
}

// IsPlanError checks if the error came from planning
func IsPlanError(err error) bool {
	switch CodeOf(err) {
	case ErrInvalidName, ErrUnresolvable, ErrPlanConflict:
		return true
	}
	return false
}

// IsRollbackError checks if rollback itself failed, leaving mixed state on disk
func IsRollbackError(err error) bool {
	return HasCode(err, ErrRollbackFailed)
}

// IsTimeout checks if the error is a timeout error
func IsTimeout(err error) bool {
	return HasCode(err, ErrTimeout)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return HasCode(err, ErrNotFound)
}

// FailureReportOf extracts the failure report attached to an apply or rollback error
func FailureReportOf(err error) (*FailureReport, bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return nil, false
	}
	report, ok := appErr.Details.(*FailureReport)
	return report, ok
}
