package output

import (
	"errors"
	"fmt"
)

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code    string
	Message string
	Hint    string
	Cause   error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// HTTPStatus returns the status code the server answers with for this error.
func (e *Error) HTTPStatus() int {
	return HTTPStatusFor(e.Code)
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

func ErrNotFound(resource, identifier string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

func ErrNotFoundHint(resource, identifier, hint string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
		Hint:    hint,
	}
}

func ErrConfig(cause error) *Error {
	return &Error{
		Code:    CodeConfig,
		Message: cause.Error(),
		Hint:    "Run: storewatch config",
		Cause:   cause,
	}
}

func ErrStore(cause error) *Error {
	return &Error{
		Code:    CodeStore,
		Message: "Store error",
		Hint:    cause.Error(),
		Cause:   cause,
	}
}

// ErrUnhealthy reports a pass that finished with errors. The rendered result
// has already been written, so the message stays short.
func ErrUnhealthy(errorCount int) *Error {
	return &Error{
		Code:    CodeUnhealthy,
		Message: fmt.Sprintf("health check failed with %d error(s)", errorCount),
		Hint:    "Run: storewatch check -v",
	}
}

// AsError attempts to convert an error to an *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Code:    CodeInternal,
		Message: err.Error(),
		Cause:   err,
	}
}
