package apperrors

import (
	"errors"
	"fmt"
)

// Code classifies an operation failure for HTTP mapping.
type Code string

const (
	CodeValidation Code = "validation"
	CodeNotFound   Code = "not_found"
	CodeForbidden  Code = "forbidden"
	CodeProcessing Code = "processing"
	CodeStorage    Code = "storage"
	CodeConflict   Code = "conflict"
)

// Error is a coded error with a client-safe message. The wrapped cause
// (if any) is logged server-side but never serialized to the client.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

func Processing(message string, cause error) *Error {
	return &Error{Code: CodeProcessing, Message: message, Err: cause}
}

func Storage(cause error) *Error {
	return &Error{Code: CodeStorage, Message: "Server error", Err: cause}
}

func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// IsCode reports whether err is (or wraps) an Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// StatusCode maps an error to its HTTP status. Unknown errors are 500.
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return 500
	}
	switch e.Code {
	case CodeValidation:
		return 400
	case CodeNotFound:
		return 404
	case CodeForbidden:
		return 403
	case CodeConflict:
		return 409
	default:
		return 500
	}
}

// ClientMessage returns the message safe to send to the caller. Internal
// failures collapse to a generic message.
func ClientMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Server error"
	}
	switch e.Code {
	case CodeValidation, CodeNotFound, CodeForbidden, CodeProcessing, CodeConflict:
		return e.Message
	default:
		return "Server error"
	}
}
