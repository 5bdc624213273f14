package domain

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorCode classifies a business-rule failure. Controllers translate codes to
// HTTP statuses; services never touch HTTP.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION"
	CodeAuthorization     ErrorCode = "AUTHORIZATION"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeConflict          ErrorCode = "CONFLICT"
	CodePrecondition      ErrorCode = "PRECONDITION"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeGateway           ErrorCode = "GATEWAY"
	CodeInternal          ErrorCode = "INTERNAL"
)

// Error is a typed domain error raised at component boundaries.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an underlying error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Validation(message string) *Error        { return NewError(CodeValidation, message) }
func Authorization(message string) *Error     { return NewError(CodeAuthorization, message) }
func NotFound(message string) *Error          { return NewError(CodeNotFound, message) }
func Conflict(message string) *Error          { return NewError(CodeConflict, message) }
func Precondition(message string) *Error      { return NewError(CodePrecondition, message) }
func InvalidTransition(message string) *Error { return NewError(CodeInvalidTransition, message) }

// Gateway classifies a payment gateway failure or ambiguous outcome.
func Gateway(message string, err error) *Error {
	return WrapError(CodeGateway, message, err)
}

// Internal classifies storage or other unexpected failures.
func Internal(err error) *Error {
	return WrapError(CodeInternal, "Server error!", err)
}

// CodeOf extracts the domain code, defaulting to INTERNAL for untyped errors.
func CodeOf(err error) ErrorCode {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given domain code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// Message returns the user-facing message for a domain error.
func Message(err error) string {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Message
	}
	return "Server error!"
}

// HTTPStatus maps a domain error to the HTTP status returned at the boundary.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation, CodePrecondition:
		return fiber.StatusBadRequest
	case CodeAuthorization:
		return fiber.StatusForbidden
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeConflict, CodeInvalidTransition:
		return fiber.StatusConflict
	case CodeGateway:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
