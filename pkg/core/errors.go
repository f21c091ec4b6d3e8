package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches against the predefined error vars by code.
func (e *ExecutionError) Is(target error) bool {
	var te *ExecutionError
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors, one per taxonomy entry.
var (
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "element_not_found",
		Message:  "element not found after all strategies and attempts",
	}
	ErrStaleElement = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "stale_element",
		Message:  "element reference is no longer valid",
	}

	ErrActionFailed = &ExecutionError{
		Category: ErrCategoryAction,
		Code:     "action_failed",
		Message:  "action failed on primary and fallback input",
	}
	ErrTextMismatch = &ExecutionError{
		Category: ErrCategoryAction,
		Code:     "text_mismatch",
		Message:  "field content does not match typed value",
	}

	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}

	ErrStepFatal = &ExecutionError{
		Category: ErrCategoryStep,
		Code:     "step_fatal",
		Message:  "screen is in an unrecoverable state",
	}

	ErrSessionLost = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "session_lost",
		Message:  "driver session lost",
	}
	ErrSessionUnavailable = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "session_unavailable",
		Message:  "could not acquire driver session",
	}

	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrInvalidParams = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_params",
		Message:  "invalid account parameters",
	}

	ErrStoreUnavailable = &ExecutionError{
		Category: ErrCategoryStore,
		Code:     "store_unavailable",
		Message:  "result store unavailable",
	}
	ErrRunNotFound = &ExecutionError{
		Category: ErrCategoryStore,
		Code:     "run_not_found",
		Message:  "run not found",
	}
	ErrRunActive = &ExecutionError{
		Category: ErrCategoryRun,
		Code:     "run_active",
		Message:  "run is already being executed",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CategoryOf returns the category of an error, or ErrCategoryNone for nil
// and non-ExecutionError values.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryNone
}

// IsSessionLost reports whether the error indicates an unusable driver session.
func IsSessionLost(err error) bool {
	return CategoryOf(err) == ErrCategorySession
}
