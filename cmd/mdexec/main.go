package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses args, executes the selected command and returns the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var cli CLI
	g := &Global{Ctx: ctx, Stdin: stdin, Stdout: stdout, Stderr: stderr}

	parser, err := kong.New(&cli,
		kong.Name("mdexec"),
		kong.Description("Execute the code blocks of a Markdown document and write their output back into it"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Vars{"version": version.String()},
		kong.Bind(g),
	)
	if err != nil {
		fmt.Fprintf(stderr, "mdexec: %v\n", err)
		return 10
	}

	adapter := errors.NewCLIErrorAdapter(cli.Verbose, g.logger())

	kctx, err := parser.Parse(args)
	if err != nil {
		// AfterApply failures (configuration) arrive wrapped in a parse error.
		if _, ok := errors.AsClassified(err); ok {
			return adapter.Report(stderr, err)
		}
		fmt.Fprintf(stderr, "mdexec: %v\n", err)
		return 2
	}

	err = kctx.Run()
	if err == nil {
		return 0
	}
	if stderrors.Is(err, errWouldChange) {
		return 1
	}

	return errors.NewCLIErrorAdapter(cli.Verbose, g.logger()).Report(stderr, err)
}
