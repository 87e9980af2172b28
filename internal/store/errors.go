package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates a request the namespace configuration
	// forbids, such as a TTL on a standard namespace. Nothing was written.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeStorage indicates an engine or filesystem failure.
	ErrCodeStorage ErrorCode = "STORAGE"
)

// Error is returned by every Store operation that fails.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed ("set", "get", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfigurationError returns true if err is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeConfiguration
	}
	return false
}

// IsStorageFailure returns true if err is an engine or filesystem failure.
func IsStorageFailure(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeStorage
	}
	return false
}

func configError(op, format string, args ...any) *Error {
	return &Error{Code: ErrCodeConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

func storageError(op, message string, err error) *Error {
	return &Error{Code: ErrCodeStorage, Op: op, Message: message, Err: err}
}
