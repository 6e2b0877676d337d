// Package errors provides standardized error handling for hardenspec.
// It defines sentinel errors and utilities for error wrapping with context.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Sentinel errors for common failure scenarios
var (
	// ErrTransport indicates the target could not be reached or the command could not be delivered
	ErrTransport = stderrors.New("transport failure")

	// ErrTimeoutExceeded indicates a command or operation exceeded its timeout
	ErrTimeoutExceeded = stderrors.New("timeout exceeded")

	// ErrPermissionDenied indicates insufficient permissions
	ErrPermissionDenied = stderrors.New("permission denied")

	// ErrCommandNotAllowed indicates a command was rejected by the read-only guard
	ErrCommandNotAllowed = stderrors.New("command not allowed")

	// ErrInvalidConfig indicates configuration is invalid or incomplete
	ErrInvalidConfig = stderrors.New("invalid configuration")

	// ErrInvalidInput indicates user input is invalid
	ErrInvalidInput = stderrors.New("invalid input")

	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = stderrors.New("not found")

	// ErrParseFailure indicates parsing failed
	ErrParseFailure = stderrors.New("parse failure")

	// ErrSignature indicates a signature could not be produced or did not verify
	ErrSignature = stderrors.New("signature mismatch")
)

// Wrap wraps an error with context message and preserves the underlying error chain.
// Use this to add context while maintaining error identity for stderrors.Is checks.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around stderrors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
