// Package errors provides centralized error definitions and error handling utilities
// for multiworker. It defines the failure taxonomy used by the turn engine, error
// constructors with context wrapping, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures at each level of a turn:
//   - ModelError: a single model call failed, classified Transient or Fatal
//   - TaskError: a retrying task reached a terminal failure
//   - TurnError: a whole turn failed (no worker succeeded, or synthesis failed)
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or configuration
//   - TimeoutError: an operation exceeded its budget
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewModelError("rate limited", errors.ClassTransient, cause).WithStatusCode(429)
//	err := errors.NewTaskError("Worker-2", 5, lastErr)
//	err := errors.NewTurnError(errors.ErrNoWorkerSucceeded).WithTurnID(id)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrSynthesisFailed) { ... }
//	if errors.IsRetryable(err) { ... }
//	if errors.IsFatal(err) { ... }
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Class is the retry classification of a single model call failure.
type Class int

const (
	// ClassTransient covers timeouts, rate limits and connection resets.
	ClassTransient Class = iota
	// ClassFatal covers bad credentials and malformed requests.
	ClassFatal
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Model call sentinel errors
var (
	// ErrTransient marks a retryable model call failure.
	ErrTransient = New("transient model error")
	// ErrFatal marks a non-retryable model call failure.
	ErrFatal = New("fatal model error")
	// ErrMissingAPIKey indicates that no API key was configured for the endpoint.
	ErrMissingAPIKey = New("missing API key")
	// ErrEmptyResponse indicates that the model returned no text.
	ErrEmptyResponse = New("empty model response")
)

// Task and turn sentinel errors
var (
	// ErrRetriesExhausted indicates that a retrying task used all its attempts.
	ErrRetriesExhausted = New("retries exhausted")
	// ErrNoWorkerSucceeded indicates that every worker of a turn failed.
	ErrNoWorkerSucceeded = New("no worker succeeded")
	// ErrSynthesisFailed indicates that the synthesizer reached a terminal failure.
	ErrSynthesisFailed = New("synthesis failed")
	// ErrWorkerPanicked indicates that a worker goroutine panicked.
	ErrWorkerPanicked = New("worker panicked")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// MultiworkerError is the base interface for all multiworker errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type MultiworkerError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ModelError is a single failed model call.
//
// Example:
//
//	err := errors.NewModelError("rate limited", errors.ClassTransient, nil).WithStatusCode(429)
//	fmt.Println(err) // "model error [transient, status=429]: rate limited"
type ModelError struct {
	baseError
	Class      Class
	StatusCode int
	Provider   string
}

// NewModelError creates a new ModelError with the given classification.
func NewModelError(message string, class Class, cause error) *ModelError {
	severity := SeverityWarning
	if class == ClassFatal {
		severity = SeverityError
	}
	return &ModelError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   severity,
			retryable:  class == ClassTransient,
			userFacing: true,
		},
		Class: class,
	}
}

// Transient is shorthand for NewModelError(message, ClassTransient, cause).
func Transient(message string, cause error) *ModelError {
	return NewModelError(message, ClassTransient, cause)
}

// Fatal is shorthand for NewModelError(message, ClassFatal, cause).
func Fatal(message string, cause error) *ModelError {
	return NewModelError(message, ClassFatal, cause)
}

// WithStatusCode adds the HTTP status code to the error context.
func (e *ModelError) WithStatusCode(code int) *ModelError {
	e.StatusCode = code
	return e
}

// WithProvider adds the provider name to the error context.
func (e *ModelError) WithProvider(provider string) *ModelError {
	e.Provider = provider
	return e
}

// Error returns the formatted error message.
func (e *ModelError) Error() string {
	parts := []string{e.Class.String()}
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}

	prefix := fmt.Sprintf("model error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ModelError) Is(target error) bool {
	if _, ok := target.(*ModelError); ok {
		return true
	}
	if target == ErrTransient {
		return e.Class == ClassTransient
	}
	if target == ErrFatal {
		return e.Class == ClassFatal
	}
	return e.baseError.Is(target)
}

// TaskError is the terminal failure of a retrying task.
//
// Example:
//
//	err := errors.NewTaskError("Worker-2", 5, lastErr)
//	fmt.Println(err) // "task error [task=Worker-2, attempts=5]: retries exhausted: <last error>"
type TaskError struct {
	baseError
	Task     string
	Attempts int
}

// NewTaskError creates a new TaskError. The message is derived from the last
// error: "timed out" when the task ran past its budget, "canceled" when the
// turn was interrupted, "retries exhausted" when it was transient, "aborted"
// otherwise. A canceled task is reported at SeverityInfo.
func NewTaskError(task string, attempts int, lastErr error) *TaskError {
	message := "aborted"
	severity := SeverityError
	switch {
	case Is(lastErr, ErrTimeout) || Is(lastErr, context.DeadlineExceeded):
		message = "timed out"
	case Is(lastErr, ErrCanceled) || Is(lastErr, context.Canceled):
		message = "canceled"
		severity = SeverityInfo
	case IsRetryable(lastErr):
		message = ErrRetriesExhausted.Error()
	}
	return &TaskError{
		baseError: baseError{
			message:    message,
			cause:      lastErr,
			severity:   severity,
			retryable:  false,
			userFacing: true,
		},
		Task:     task,
		Attempts: attempts,
	}
}

// Error returns the formatted error message.
func (e *TaskError) Error() string {
	var parts []string
	if e.Task != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.Task))
	}
	parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))

	prefix := fmt.Sprintf("task error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TaskError) Is(target error) bool {
	if _, ok := target.(*TaskError); ok {
		return true
	}
	if target == ErrRetriesExhausted {
		return e.message == ErrRetriesExhausted.Error()
	}
	return e.baseError.Is(target)
}

// TurnError is the fatal outcome of a turn. Its Reason is one of
// ErrNoWorkerSucceeded or ErrSynthesisFailed.
//
// Example:
//
//	err := errors.NewTurnError(errors.ErrSynthesisFailed).WithTurnID("t-1").WithCause(taskErr)
type TurnError struct {
	baseError
	Reason error
	TurnID string
	Phase  string
}

// NewTurnError creates a new TurnError for the given reason.
func NewTurnError(reason error) *TurnError {
	return &TurnError{
		baseError: baseError{
			message:    reason.Error(),
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
		Reason: reason,
	}
}

// WithTurnID adds the turn ID to the error context.
func (e *TurnError) WithTurnID(id string) *TurnError {
	e.TurnID = id
	return e
}

// WithPhase adds the phase in which the turn failed.
func (e *TurnError) WithPhase(phase string) *TurnError {
	e.Phase = phase
	return e
}

// WithCause adds the decisive underlying error.
func (e *TurnError) WithCause(cause error) *TurnError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TurnError) Error() string {
	var parts []string
	if e.TurnID != "" {
		parts = append(parts, fmt.Sprintf("turn=%s", e.TurnID))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}

	prefix := "turn error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("turn error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TurnError) Is(target error) bool {
	if _, ok := target.(*TurnError); ok {
		return true
	}
	if e.Reason != nil && errors.Is(e.Reason, target) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("worker count must be positive").WithField("workers.count").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that exceeded its budget.
//
// Example:
//
//	err := errors.NewTimeoutError("Worker-3", 90*time.Second)
//	fmt.Println(err) // "timeout error: Worker-3 (timeout: 1m30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError. Timeouts are retryable by default.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing MultiworkerError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout or context.DeadlineExceeded
//   - Any other error that is not classified, which is treated as transient
//
// Cancellation, context.Canceled or ErrCanceled, is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, context.Canceled) || Is(err, ErrCanceled) {
		return false
	}

	var mwErr MultiworkerError
	if As(err, &mwErr) {
		return mwErr.IsRetryable()
	}

	return true
}

// IsFatal returns true if the error must not be retried.
func IsFatal(err error) bool {
	return err != nil && !IsRetryable(err)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var mwErr MultiworkerError
	if As(err, &mwErr) {
		return mwErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement MultiworkerError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var mwErr MultiworkerError
	if As(err, &mwErr) {
		return mwErr.Severity()
	}

	return SeverityError
}

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
