package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query rejected (compile error, unknown columns)
	ExitCommandError = 2 // Command error (unreadable input, bad config, database failure)
)

// ExitError carries the process exit code of a failed command. Its message
// has already been printed by the formatter.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter prints command results as JSON envelopes or plain text.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
	TraceID string
}

// Response is the JSON envelope of every command.
type Response struct {
	Status  string         `json:"status"` // "ok" or "error"
	Data    any            `json:"data,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
	TraceID string         `json:"trace_id,omitempty"`
}

// ResponseError describes a failed command. Details is a list of schema
// issues or the location of a compile error.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp Response) error {
	resp.TraceID = f.TraceID
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success prints data.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error prints a failure. In text mode schema issues are always listed, one
// per line; compile error locations only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: message, Details: details},
		})
	}

	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	switch d := details.(type) {
	case []string:
		for _, issue := range d {
			fmt.Fprintf(f.Writer, "  - %s\n", issue)
		}
	case map[string]string:
		if !f.Verbose {
			return nil
		}
		for _, k := range slices.Sorted(maps.Keys(d)) {
			fmt.Fprintf(f.Writer, "  %s: %s\n", k, d[k])
		}
	case nil:
	default:
		if f.Verbose {
			fmt.Fprintf(f.Writer, "  %v\n", d)
		}
	}
	return nil
}
