package interp

import (
	"context"
	stderrors "errors"
	"fmt"

	starjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var starlarkFileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Starlark runs blocks in-process with the go.starlark.net interpreter.
//
// Blocks see get_block, query_blocks, format_table, parse_table, table_dicts,
// to_table, parse_csv and the json module as predeclared names.
type Starlark struct {
	// MaxSteps bounds execution; zero means unbounded.
	MaxSteps uint64
}

// NewStarlark returns a Starlark interpreter.
func NewStarlark() *Starlark {
	return &Starlark{}
}

func (s *Starlark) Name() string { return "starlark" }

func (s *Starlark) Run(ctx context.Context, src string, ectx *Context) error {
	thread := &starlark.Thread{
		Name: ectx.BlockID,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(ectx.Stdout, msg)
		},
	}
	if s.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(s.MaxSteps)
	}

	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(ctx.Err().Error())
	})
	defer stop()

	filename := ectx.BlockID
	if filename == "" {
		filename = "block"
	}

	_, err := starlark.ExecFileOptions(starlarkFileOptions, thread, filename+".star", src, predeclared(ectx))
	if err == nil {
		return nil
	}
	if terr := timedOut(ctx, ectx); terr != nil {
		return terr
	}
	return starlarkFailure(err)
}

func starlarkFailure(err error) error {
	var evalErr *starlark.EvalError
	if stderrors.As(err, &evalErr) {
		f := failure(evalErr.Msg)
		if frame := topFrame(evalErr.CallStack); frame != nil {
			f = f.WithContext("line", int(frame.Pos.Line))
		}
		return f
	}

	var syntaxErr syntax.Error
	if stderrors.As(err, &syntaxErr) {
		return failure(syntaxErr.Msg).WithContext("line", int(syntaxErr.Pos.Line))
	}
	return failure(err.Error())
}

// topFrame returns the innermost frame that belongs to the block source.
func topFrame(stack starlark.CallStack) *starlark.CallFrame {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Pos.Filename() != "<builtin>" {
			return &stack[i]
		}
	}
	return nil
}

func predeclared(ectx *Context) starlark.StringDict {
	return starlark.StringDict{
		"get_block":    starlark.NewBuiltin("get_block", getBlockBuiltin(ectx)),
		"query_blocks": starlark.NewBuiltin("query_blocks", queryBlocksBuiltin(ectx)),
		"format_table": starlark.NewBuiltin("format_table", formatTableBuiltin),
		"parse_table":  starlark.NewBuiltin("parse_table", parseTableBuiltin),
		"table_dicts":  starlark.NewBuiltin("table_dicts", tableDictsBuiltin),
		"to_table":     starlark.NewBuiltin("to_table", toTableBuiltin),
		"parse_csv":    starlark.NewBuiltin("parse_csv", parseCSVBuiltin),
		"json":         starjson.Module,
	}
}
