// Package errors provides structured error handling for the SDDS engine.
//
// Every fallible operation in the engine returns an *Error whose Type names
// one of the failure categories below. Callers branch on the category with
// IsType instead of parsing messages, and the original cause stays reachable
// through errors.Is / errors.As.
package errors

import (
	"errors"
	"runtime"

	stringpool "github.com/ajitpratap0/sdds/pkg/strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeName marks an invalid or duplicate identifier
	ErrorTypeName ErrorType = "name"
	// ErrorTypeType marks an unknown or mismatched scalar type, or a failed cast
	ErrorTypeType ErrorType = "type"
	// ErrorTypeBounds marks a row, column, parameter or array index or count out of range
	ErrorTypeBounds ErrorType = "bounds"
	// ErrorTypeAllocation marks a buffer that could not be sized
	ErrorTypeAllocation ErrorType = "allocation"
	// ErrorTypeProtocol marks a malformed header, unknown data mode, version conflict or premature EOF
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypeTransport marks open, seek, lock or stream failures
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeState marks an operation invoked out of sequence
	ErrorTypeState ErrorType = "state"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: stringpool.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
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

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, errType, stringpool.Sprintf(format, args...))
	return wrapped
}

// Annotatef wraps err with context like Wrapf. A structured err keeps its
// own category; errType only applies to causes that have none.
func Annotatef(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if t := TypeOf(err); t != "" {
		errType = t
	}
	return Wrapf(err, errType, format, args...)
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the category of err, or "" when err is not structured
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack captures the current call stack
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
