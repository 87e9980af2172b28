package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/prontodb/internal/address"
	"github.com/roach88/prontodb/internal/cursor"
	"github.com/roach88/prontodb/internal/pronto"
	"github.com/roach88/prontodb/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess  = 0 // Successful execution
	ExitFailure  = 1 // Invalid input, isolation violation, storage failure
	ExitNotFound = 2 // Missing or expired key, unknown cursor
)

// Error codes carried in JSON error responses.
const (
	CodeNotFound  = "NOT_FOUND"
	CodeAddress   = "INVALID_ADDRESS"
	CodeIsolation = "ISOLATION"
	CodeConfig    = "CONFIGURATION"
	CodeStorage   = "STORAGE"
	CodeInvalid   = "INVALID"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitNotFound)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure for anything that is not an
// ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode classifies err for JSON error responses.
func errorCode(err error) string {
	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr) && exitErr.Code == ExitNotFound:
		return CodeNotFound
	case errors.Is(err, cursor.ErrNotFound):
		return CodeNotFound
	case address.IsParseError(err):
		return CodeAddress
	case errors.Is(err, pronto.ErrIsolation):
		return CodeIsolation
	case store.IsConfigurationError(err):
		return CodeConfig
	case store.IsStorageFailure(err):
		return CodeStorage
	default:
		return CodeInvalid
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics and text-mode errors (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "NOT_FOUND", "ISOLATION", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result. In text mode data is printed as is.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Lines outputs a list: one item per line in text mode, a JSON array
// otherwise. An empty list prints nothing in text mode.
func (f *OutputFormatter) Lines(items []string) error {
	if f.Format == "json" {
		if items == nil {
			items = []string{}
		}
		return f.Success(items)
	}
	for _, item := range items {
		if _, err := fmt.Fprintln(f.Writer, item); err != nil {
			return err
		}
	}
	return nil
}

// Error outputs an error in the configured format. Text errors go to
// ErrWriter so stdout stays clean for piping.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns it carrying its exit code.
func (f *OutputFormatter) Fail(err error) error {
	_ = f.Error(errorCode(err), err.Error(), nil)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return WrapExitError(ExitFailure, "command failed", err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
