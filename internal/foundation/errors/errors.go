// Package errors classifies mdexec failures so callers can tell a broken
// document from a failing block, and so the CLI and the block server can
// report them consistently.
//
//	err := errors.NotFoundError(fmt.Sprintf("no block with id %q", id)).
//		WithContext("id", id).
//		Build()
package errors

import (
	stderrors "errors"
	"maps"
)

// ErrorCategory is the broad class of a failure. It decides exit codes and
// HTTP statuses.
type ErrorCategory string

const (
	// CategoryConfig covers configuration files, flags and document settings.
	CategoryConfig ErrorCategory = "config"
	// CategoryValidation covers malformed documents and invalid input.
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryNotUnique  ErrorCategory = "not_unique"

	// CategoryInterpreter covers failures raised by block code.
	CategoryInterpreter ErrorCategory = "interpreter"
	CategoryTimeout     ErrorCategory = "timeout"

	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity tells whether a failure aborts the run or only the current block.
type ErrorSeverity string

const (
	SeverityFatal ErrorSeverity = "fatal"
	SeverityError ErrorSeverity = "error"
)

// ErrorContext carries structured details, such as the offending line.
type ErrorContext map[string]any

// GetInt returns an int detail.
func (c ErrorContext) GetInt(key string) (int, bool) {
	n, ok := c[key].(int)
	return n, ok
}

// ClassifiedError is an error with a category, a severity and context.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	message  string
	cause    error
	context  ErrorContext
}

func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return string(e.category) + ": " + e.message + ": " + e.cause.Error()
	}
	return string(e.category) + ": " + e.message
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory { return e.category }

func (e *ClassifiedError) Severity() ErrorSeverity { return e.severity }

// Message returns the message without category or cause.
func (e *ClassifiedError) Message() string { return e.message }

func (e *ClassifiedError) Context() ErrorContext { return e.context }

// IsFatal reports whether the error aborts the whole run.
func (e *ClassifiedError) IsFatal() bool { return e.severity == SeverityFatal }

// WithContext returns a copy of e with key set.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	cp := *e
	cp.context = maps.Clone(e.context)
	if cp.context == nil {
		cp.context = ErrorContext{}
	}
	cp.context[key] = value
	return &cp
}

// AsClassified returns the outermost ClassifiedError in the chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory reports whether the outermost classified error has category.
func HasCategory(err error, category ErrorCategory) bool {
	c, ok := AsClassified(err)
	return ok && c.category == category
}

// LineOf returns the document line attached to err, if any.
func LineOf(err error) (int, bool) {
	c, ok := AsClassified(err)
	if !ok {
		return 0, false
	}
	return c.context.GetInt("line")
}

// MessageOf returns the messages of the chain joined by ": ", without
// category decoration. This is the text shown to users and written inline.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if c, ok := AsClassified(err); ok {
		if c.cause != nil {
			return c.message + ": " + MessageOf(c.cause)
		}
		return c.message
	}
	return err.Error()
}
