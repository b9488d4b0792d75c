// Package errors provides structured error types for cfboot.
//
// Every failure that crosses a package boundary carries a [Code] so that the
// resolver and the CLI can decide how to react without string matching:
//   - INVALID_*: malformed input (version text, manifest fragments)
//   - MODULE_NOT_FOUND / START_FAILED: resolution outcomes
//   - DOWNLOAD_*: update provider failures and policy refusals
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidVersion, "given version [%s] is invalid", text)
//	if errors.Is(err, errors.ErrCodeInvalidVersion) {
//	    // fall back to a default
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDownloadFailed, origErr, "download %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidVersion  Code = "INVALID_VERSION"
	ErrCodeDescriptorParse Code = "DESCRIPTOR_PARSE"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// Resolution errors
	ErrCodeModuleNotFound Code = "MODULE_NOT_FOUND"
	ErrCodeStartFailed    Code = "START_FAILED"
	ErrCodeStopTimeout    Code = "STOP_TIMEOUT"

	// Update provider errors
	ErrCodeDownloadDisabled Code = "DOWNLOAD_DISABLED"
	ErrCodeDownloadFailed   Code = "DOWNLOAD_FAILED"

	// Authorization errors
	ErrCodeUnauthorized Code = "UNAUTHORIZED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether any *Error in err's chain has the given code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Chain returns the messages of every error in err's chain, outermost first.
// It is used when the full diagnostic chain has to be printed.
func Chain(err error) []string {
	var out []string
	for err != nil {
		var e *Error
		if errors.As(err, &e) {
			out = append(out, e.Message)
			err = e.Cause
			continue
		}
		out = append(out, err.Error())
		break
	}
	return out
}
