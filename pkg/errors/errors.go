package errors

import (
	"errors"
	"fmt"
)

// Standard error codes used across the system.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeConflict        = "CONFLICT"
	CodeForbidden       = "FORBIDDEN"
	CodeInternal        = "INTERNAL"
	CodeUnavailable     = "UNAVAILABLE"
	CodeTimeout         = "TIMEOUT"
)

// AppError is the standard structured error used throughout the system.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with the given code, message and wrapped error.
func New(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Wrap attaches a message to err, preserving its code if it is already an AppError.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if As(err, &appErr) {
		return New(appErr.Code, message+": "+appErr.Message, appErr.Err)
	}
	return New(CodeInternal, message, err)
}

// NotFound creates an AppError with CodeNotFound.
func NotFound(message string, err error) *AppError {
	return New(CodeNotFound, message, err)
}

// InvalidArgument creates an AppError with CodeInvalidArgument.
func InvalidArgument(message string, err error) *AppError {
	return New(CodeInvalidArgument, message, err)
}

// Conflict creates an AppError with CodeConflict.
func Conflict(message string, err error) *AppError {
	return New(CodeConflict, message, err)
}

// Forbidden creates an AppError with CodeForbidden.
func Forbidden(message string, err error) *AppError {
	return New(CodeForbidden, message, err)
}

// Internal creates an AppError with CodeInternal.
func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, err)
}

// Unavailable creates an AppError with CodeUnavailable.
func Unavailable(message string, err error) *AppError {
	return New(CodeUnavailable, message, err)
}

// Is re-exports the standard library errors.Is for convenience within this package's idiom.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports the standard library errors.As for convenience within this package's idiom.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// CodeOf returns the code of err if it is (or wraps) an AppError, else CodeInternal.
func CodeOf(err error) string {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
