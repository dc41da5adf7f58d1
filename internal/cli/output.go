package cli

import (
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/example/docsync/internal/core"
	"github.com/example/docsync/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // backend or transport failure
	ExitCommandError = 2 // bad arguments, unknown collection, unsupported operation
	ExitNoData       = 3
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not
// ExitErrors map to ExitFailure.
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

// engineError classifies a repository error into an ExitError.
func engineError(op string, err error) *ExitError {
	switch {
	case errors.Is(err, core.ErrNoData):
		return WrapExitError(ExitNoData, op, err)
	case errors.Is(err, core.ErrUnsupportedOperation),
		errors.Is(err, core.ErrInvalidReference),
		errors.Is(err, core.ErrNoIdentifier):
		return WrapExitError(ExitCommandError, op, err)
	default:
		return WrapExitError(ExitFailure, op, err)
	}
}

// CLIResponse is the JSON envelope written in json format.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Message string `json:"message"`
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func newFormatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w}
}

// Success writes data. In text format data is printed with %v.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Records writes one batch. Text format prints one record per line as the
// identifier followed by its fields as JSON.
func (f *OutputFormatter) Records(recs []*models.Document) error {
	if f.Format == "json" {
		if recs == nil {
			recs = []*models.Document{}
		}
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: recs})
	}
	if len(recs) == 0 {
		_, err := fmt.Fprintln(f.Writer, "(no records)")
		return err
	}
	for _, rec := range recs {
		fields, err := json.Marshal(rec.Data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(f.Writer, "%s\t%s\n", rec.ID, fields); err != nil {
			return err
		}
	}
	return nil
}

// Error writes err in the configured format.
func (f *OutputFormatter) Error(err error) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: &CLIError{Message: err.Error()}})
	}
	_, werr := fmt.Fprintf(f.Writer, "Error: %v\n", err)
	return werr
}
