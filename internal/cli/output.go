package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/maat/internal/ranking"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Engine failure (a flush failed, a read failed)
	ExitCommandError = 2 // Command error (bad selector, unreadable config or catalog, database not found)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
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
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
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

// errorCode names the error class reported in JSON error responses.
func errorCode(err error) string {
	var rerr *ranking.Error
	if errors.As(err, &rerr) {
		return string(rerr.Code)
	}
	var ferr *ranking.FlushError
	if errors.As(err, &ferr) {
		return "FLUSH_FAILED"
	}
	if GetExitCode(err) == ExitCommandError {
		return "COMMAND_ERROR"
	}
	return "FAILED"
}

// textRenderer is implemented by command results with a human-readable form.
type textRenderer interface {
	renderText(w io.Writer) error
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// newFormatter builds a formatter writing to w, with diagnostics on errW.
func newFormatter(opts *RootOptions, w, errW io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w, ErrWriter: errW, Verbose: opts.Verbose}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}

	if r, ok := data.(textRenderer); ok {
		return r.renderText(f.Writer)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format. Text errors go to
// ErrWriter; JSON errors go to Writer so a consumer always reads one
// document.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
