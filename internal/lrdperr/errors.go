// Package lrdperr provides the structured error type used across the
// debug session engine. Internal invariant violations and protocol
// errors are always raised as *Error so they can be translated into a
// DAP ErrorResponse or a custom-request error payload without ever
// escaping the session boundary as an unstructured fault.
package lrdperr

import (
	stderrors "errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	// Inbound request errors.
	CodeMalformedArguments Code = "MALFORMED_ARGUMENTS"
	CodeUnknownCommand     Code = "UNKNOWN_COMMAND"
	CodeNotInitialized     Code = "NOT_INITIALIZED"
	CodeAlreadyInitialized Code = "ALREADY_INITIALIZED"
	CodeNotImplemented     Code = "NOT_IMPLEMENTED"

	// Core logical invariant violations.
	CodeNoSelectedStep        Code = "NO_SELECTED_STEP"
	CodeStepNotComposite      Code = "STEP_NOT_COMPOSITE"
	CodeStepNotAtomic         Code = "STEP_NOT_ATOMIC"
	CodeAlreadyTerminated     Code = "TERMINATION_EVENT_ALREADY_SENT"
	CodeUnknownStep           Code = "UNKNOWN_STEP"
	CodeUnknownBreakpointType Code = "UNKNOWN_BREAKPOINT_TYPE"

	// Transport failures: fatal for the session.
	CodeRuntimeTransport Code = "RUNTIME_TRANSPORT_FAILURE"

	// A response that decoded but didn't match the expected shape: the
	// connection itself is still live, so callers degrade instead of
	// tearing down the session.
	CodeMalformedResponse Code = "MALFORMED_RESPONSE"

	// Session-lifecycle errors.
	CodeSessionClosed Code = "SESSION_CLOSED"
)

// Error is the structured error type every core component raises.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an *Error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an *Error carrying an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// As reports whether err is (or wraps) an *Error, returning it.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsFatal reports whether the error kind should terminate the owning
// session rather than degrade gracefully, per a fixed per-code table.
func (e *Error) IsFatal() bool {
	switch e.Code {
	case CodeRuntimeTransport, CodeNoSelectedStep, CodeStepNotComposite, CodeStepNotAtomic, CodeSessionClosed:
		return true
	default:
		return false
	}
}
