package record

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures reported by the core.
type ErrorCode string

const (
	// CodeValidation indicates bad or missing caller input.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeNotFound indicates an unknown customer number.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeIO indicates an unwritable destination or inaccessible storage.
	CodeIO ErrorCode = "IO"

	// CodeExhausted indicates the customer number space is used up.
	CodeExhausted ErrorCode = "EXHAUSTED"
)

// Error is the structured error returned by store, export and contract
// operations. Op names the operation ("create", "export", ...); ClientID
// and Path are set when the failure concerns a specific record or file.
type Error struct {
	Code     ErrorCode
	Op       string
	ClientID int64
	Path     string
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Message)
	if e.ClientID != 0 {
		msg += fmt.Sprintf(" (client=%d)", e.ClientID)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a CodeValidation error.
func NewValidationError(op, message string) *Error {
	return &Error{Code: CodeValidation, Op: op, Message: message}
}

// NewNotFoundError creates a CodeNotFound error for a customer number.
func NewNotFoundError(op string, clientID int64) *Error {
	return &Error{Code: CodeNotFound, Op: op, ClientID: clientID, Message: "client not found"}
}

// NewIOError creates a CodeIO error for path wrapping cause.
func NewIOError(op, path string, cause error) *Error {
	return &Error{Code: CodeIO, Op: op, Path: path, Message: "i/o failure", Err: cause}
}

// NewExhaustedError creates a CodeExhausted error wrapping cause.
func NewExhaustedError(op string, cause error) *Error {
	return &Error{Code: CodeExhausted, Op: op, Message: "customer numbers exhausted", Err: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsIO reports whether err is an I/O error.
func IsIO(err error) bool { return CodeOf(err) == CodeIO }

// IsExhausted reports whether err is an exhausted-identifier error.
func IsExhausted(err error) bool { return CodeOf(err) == CodeExhausted }
