package errors

import (
	"fmt"
	"io"
	"log/slog"
)

var exitCodes = map[ErrorCategory]int{
	CategoryValidation:  2,
	CategoryNotFound:    3,
	CategoryNotUnique:   3,
	CategoryConfig:      7,
	CategoryInternal:    10,
	CategoryFileSystem:  11,
	CategoryRuntime:     12,
	CategoryInterpreter: 12,
	CategoryTimeout:     12,
}

// CLIErrorAdapter turns errors into messages and exit codes for the command line.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter returns an adapter. Verbose output includes categories,
// causes and context.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor returns 0 for nil, the category's code for classified errors and
// 1 otherwise.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if c, ok := AsClassified(err); ok {
		if code, ok := exitCodes[c.category]; ok {
			return code
		}
	}
	return 1
}

// FormatError renders err as a single "Error: ..." line. Errors carrying a
// document line get it appended.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if a.verbose {
		return "Error: " + err.Error()
	}
	msg := "Error: " + MessageOf(err)
	if line, ok := LineOf(err); ok {
		msg = fmt.Sprintf("%s (line %d)", msg, line)
	}
	return msg
}

// Report writes the formatted error to w and returns the exit code. In verbose
// mode the error context is logged as well.
func (a *CLIErrorAdapter) Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	if c, ok := AsClassified(err); ok && a.verbose && len(c.context) > 0 {
		attrs := make([]any, 0, len(c.context)+1)
		attrs = append(attrs, slog.String("category", string(c.category)))
		for k, v := range c.context {
			attrs = append(attrs, slog.Any(k, v))
		}
		a.logger.Debug("Error context", attrs...)
	}
	_, _ = fmt.Fprintln(w, a.FormatError(err))
	return a.ExitCodeFor(err)
}
