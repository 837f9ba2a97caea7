// Package interp runs the source of executable blocks.
//
// An Interpreter receives the block source and a Context describing what the
// block can see: the document's block registry, a stdout sink, extra environment
// and, for subprocess interpreters, the socket of the per-run block server.
package interp

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/registry"
)

// Interpreter executes block source.
//
// Run writes the block's standard output to ectx.Stdout and returns a non-nil
// error when execution fails. The error message is shown to the reader inline,
// so it should be short and free of Go-side decoration.
type Interpreter interface {
	Name() string
	Run(ctx context.Context, src string, ectx *Context) error
}

// Context is the execution environment of one block.
type Context struct {
	Registry *registry.Registry
	Stdout   io.Writer
	Logger   *slog.Logger

	// BlockID identifies the running block ("" if it has no id).
	BlockID string
	// Env holds extra KEY=VALUE pairs appended to the process environment.
	Env []string
	// Timeout is the execution budget; the ctx passed to Run carries the deadline.
	Timeout time.Duration

	// Binary is the path of the mdexec executable used by shell preludes.
	Binary string
	// Socket starts the block server if needed and returns its socket path.
	Socket func() (string, error)
}

func (c *Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// failure builds the error returned for a failed execution.
func failure(msg string) *errors.ClassifiedError {
	return errors.InterpreterError(msg).Build()
}

// timedOut returns the timeout error when ctx expired, or nil.
func timedOut(ctx context.Context, ectx *Context) error {
	if !stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return errors.WrapError(ctx.Err(), errors.CategoryRuntime, "execution cancelled").Build()
		}
		return nil
	}
	msg := "execution timed out"
	if ectx.Timeout > 0 {
		msg = fmt.Sprintf("execution timed out after %s", ectx.Timeout)
	}
	return errors.NewError(errors.CategoryTimeout, msg).Build()
}

// plainError hides the classification decoration from interpreters that embed
// err.Error() in their own messages, while keeping the chain for errors.As.
type plainError struct{ err error }

func (p plainError) Error() string { return errors.MessageOf(p.err) }
func (p plainError) Unwrap() error { return p.err }
