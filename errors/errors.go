// Package errors provides sentinel errors for the bootstrap tooling.
// All errors can be checked using errors.Is() for programmatic handling.
package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors that can be checked with errors.Is().
// Each maps to one failure class surfaced to the operator.

// ErrInterpreterNotFound is returned when no system interpreter matching the
// requested version exists on PATH or in the managed-interpreter directory.
var ErrInterpreterNotFound = errors.New("interpreter not found")

// ErrVersionMismatch is returned when the virtual environment still reports
// the wrong interpreter version after it has been recreated once.
var ErrVersionMismatch = errors.New("interpreter version mismatch")

// ErrGuardProbeFailed is returned when the file-lock probe hits an I/O error
// other than a sharing violation or permission denial.
var ErrGuardProbeFailed = errors.New("lock probe failed")

// ErrExternalCommand is returned when an external tool exits non-zero.
var ErrExternalCommand = errors.New("external command failed")

// ErrInvalidConfig is returned when the run configuration is missing
// required values or cannot be parsed.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrLockMissing is returned when the combined lock holds no entry for the
// requested artifact and compilation was not requested.
var ErrLockMissing = errors.New("no existing lock for environment")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
