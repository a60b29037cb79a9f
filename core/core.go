package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error type identifiers attached to failure Results. They form the closed
// taxonomy consumed by error-pattern accounting and by callers branching on
// failure classes.
const (
	// ErrorTypeValidation marks a malformed task, hook or tool input.
	ErrorTypeValidation = "ValidationError"

	// ErrorTypeTimeout marks a tool (or hook) that exceeded its time budget.
	ErrorTypeTimeout = "TimeoutError"

	// ErrorTypeInterceptor marks a defect inside the wrapping logic itself,
	// surfaced as a synthetic failure Result rather than a panic.
	ErrorTypeInterceptor = "InterceptorError"

	// ErrorTypeToolFailure marks a business failure signaled by the tool.
	ErrorTypeToolFailure = "ToolFailure"

	// ErrorTypeCancelled marks an execution abandoned because the caller's
	// context was cancelled before or during the tool invocation.
	ErrorTypeCancelled = "CancelledError"
)

// Tool is the sole coupling point between the execution engine and business
// or domain logic. Implementations perform one unit of work.
//
// A Tool may report failure two ways: by returning a Result with
// Success=false (preferred for expected business failures) or by returning a
// non-nil error (converted into a failure Result by the interceptor). A Tool
// must honor ctx cancellation for long-running work; the interceptor enforces
// timeouts from the outside regardless.
//
// Implementations must be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool. Names key all
	// per-tool accounting (error patterns, performance series).
	Name() string

	// Execute performs the unit of work.
	Execute(ctx context.Context, input map[string]any) (*Result, error)
}

// Result captures the outcome of a single tool execution as plain data.
// Results are created fresh per execution and never mutated after they are
// returned to the caller.
type Result struct {
	// Success indicates whether the execution achieved its business outcome.
	Success bool `json:"success"`

	// FromCache indicates the output was served from a cache rather than
	// computed. Drives the cache-hit / cache-miss hook pair.
	FromCache bool `json:"from_cache"`

	// Output holds the tool's payload. Must be JSON-serializable if the
	// result is exposed over a transport.
	Output any `json:"output,omitempty"`

	// Error is the human-readable failure message, empty on success.
	Error string `json:"error,omitempty"`

	// ErrorType classifies the failure using the ErrorType* constants or a
	// tool-specific type. Empty on success.
	ErrorType string `json:"error_type,omitempty"`

	// Duration is the observed wall-clock execution time.
	Duration time.Duration `json:"duration"`

	// RetryCount reports how many retries the tool performed internally.
	// A value greater than zero fires the on_retry hook.
	RetryCount int `json:"retry_count"`
}

// Failure builds a failure Result with the given classification.
func Failure(errorType, msg string) *Result {
	return &Result{Success: false, Error: msg, ErrorType: errorType}
}

// Failuref builds a failure Result with a formatted message.
func Failuref(errorType, format string, args ...any) *Result {
	return Failure(errorType, fmt.Sprintf(format, args...))
}

// ValidationError describes a malformed task or hook specification. It is the
// only error class the engine raises eagerly, before any work is admitted.
type ValidationError struct {
	Field   string `json:"field"`   // Offending field, empty if structural
	Message string `json:"message"` // What is wrong with it
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// FunctionTool is a generic adapter that exposes a plain Go function as a
// Tool. It has no internal mutable state after construction and is safe for
// concurrent use.
//
// Error normalization: if the wrapped function returns a non-nil error the
// adapter converts it into a failure Result classified as ToolFailure
// (ValidationError values keep their own classification), so callers always
// receive outcome-as-data.
type FunctionTool struct {
	name string
	fn   func(ctx context.Context, input map[string]any) (*Result, error)
}

// NewFunctionTool constructs a FunctionTool from a name and implementation.
//
// Example:
//
//	echo := core.NewFunctionTool("echo", func(ctx context.Context, input map[string]any) (*core.Result, error) {
//	    return &core.Result{Success: true, Output: input}, nil
//	})
func NewFunctionTool(name string, fn func(ctx context.Context, input map[string]any) (*Result, error)) *FunctionTool {
	return &FunctionTool{name: name, fn: fn}
}

// Name returns the tool identifier.
func (t *FunctionTool) Name() string { return t.name }

// Execute invokes the wrapped function and normalizes its error reporting.
func (t *FunctionTool) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	res, err := t.fn(ctx, input)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return Failure(ErrorTypeValidation, verr.Error()), nil
		}
		return Failure(ErrorTypeToolFailure, err.Error()), nil
	}
	if res == nil {
		res = &Result{Success: true}
	}
	return res, nil
}
