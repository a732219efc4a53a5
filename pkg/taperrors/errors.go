// Package taperrors provides structured error handling for the tap with typed
// categories, key-value details and stack capture.
//
// # Overview
//
// Every failure the extraction core can surface maps onto one ErrorType:
//   - ErrorTypeDiscovery: warehouse reflection failed for a schema or table
//   - ErrorTypeSubmission: the warehouse rejected an export query
//   - ErrorTypeJobExecution: an export job ended failed or cancelled
//   - ErrorTypeRetrieval: listing or downloading exported files failed
//
// The remaining types cover configuration, connectivity and data handling.
//
// # Basic Usage
//
//	err := taperrors.New(taperrors.ErrorTypeConfig, "project_id is required")
//
//	if err := job.Wait(ctx); err != nil {
//	    return taperrors.Wrap(err, taperrors.ErrorTypeJobExecution, "export job failed").
//	        WithDetail("job_id", job.ID())
//	}
//
// Error values are not safe for concurrent modification. Finish adding
// details before sharing an error across goroutines.
package taperrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of an error.
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents client construction or connectivity errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeDiscovery represents warehouse reflection failures
	ErrorTypeDiscovery ErrorType = "discovery"
	// ErrorTypeQuery represents failures of direct-mode read queries
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeSubmission represents export queries rejected by the warehouse
	ErrorTypeSubmission ErrorType = "submission"
	// ErrorTypeJobExecution represents export jobs that failed or were cancelled
	ErrorTypeJobExecution ErrorType = "job_execution"
	// ErrorTypeRetrieval represents object storage listing or download failures
	ErrorTypeRetrieval ErrorType = "retrieval"
	// ErrorTypeData represents record processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents local file errors
	ErrorTypeFile ErrorType = "file"
)

// Error is a structured error carrying its category, an optional cause,
// free-form details and the call stack at creation.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is a single captured call frame.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. Calls can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type, capturing the call stack.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps err with a type and message. If err is already an *Error its
// stack is preserved. Returns nil when err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType reports whether the outermost *Error in err's chain has the given type.
//
// Example:
//
//	if taperrors.IsType(err, taperrors.ErrorTypeDiscovery) {
//	    log.Warn("skipping stream", zap.Error(err))
//	    continue
//	}
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost *Error in err's chain, or
// ErrorTypeInternal when err carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
