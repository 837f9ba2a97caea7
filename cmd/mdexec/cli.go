package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mdexec/internal/config"
	"git.home.luguber.info/inful/mdexec/internal/engine"
	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/metrics"
)

// errWouldChange is returned by `run --check` when the document is not up to date.
var errWouldChange = stderrors.New("document would change")

// Global carries process state shared by every command.
type Global struct {
	Ctx    context.Context
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
	Config *config.Config
}

func (g *Global) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:".mdexec.yaml"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log format: text or json (overrides the configuration file)" enum:",text,json" default:""`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run    RunCmd    `cmd:"" help:"Execute a document and write the result back"`
	Watch  WatchCmd  `cmd:"" help:"Re-run a document whenever it changes"`
	Blocks BlocksCmd `cmd:"" help:"List the blocks of a document"`
	Block  BlockCmd  `cmd:"" help:"Read or write blocks of the running document (inside a block)"`
	Table  TableCmd  `cmd:"" help:"Pipe-table utilities"`
}

// AfterApply runs after flag parsing; loads configuration and sets up logging once.
func (c *CLI) AfterApply(g *Global) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		g.Logger = newLogger(g.Stderr, config.LogLevelInfo, config.LogFormatText)
		return err
	}
	g.Config = cfg

	level := cfg.Logging.Level
	if c.Verbose {
		level = config.LogLevelDebug
	}
	format := cfg.Logging.Format
	if c.LogFormat != "" {
		format = config.NormalizeLogFormat(c.LogFormat)
	}
	g.Logger = newLogger(g.Stderr, level, format)
	slog.SetDefault(g.Logger)
	return nil
}

func newLogger(w io.Writer, level config.LogLevel, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level.Slog()}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newEngine builds an engine from the loaded configuration. A positive timeout
// overrides the configured one.
func (g *Global) newEngine(timeout time.Duration, rec metrics.Recorder) (*engine.Engine, error) {
	langs, err := g.Config.Languages()
	if err != nil {
		return nil, err
	}
	env, err := g.Config.Environment()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		if timeout, err = g.Config.TimeoutDuration(); err != nil {
			return nil, err
		}
	}

	opts := []engine.Option{
		engine.WithLanguages(langs),
		engine.WithTimeout(timeout),
		engine.WithEnv(env...),
		engine.WithLogger(g.logger()),
	}
	if rec != nil {
		opts = append(opts, engine.WithRecorder(rec))
	}
	if bin, err := os.Executable(); err == nil {
		opts = append(opts, engine.WithBinary(bin))
	} else {
		g.logger().Warn("Cannot resolve mdexec executable; shell helpers are unavailable", "error", err)
	}
	return engine.New(opts...), nil
}

// readInput reads path, or stdin when path is "-".
func (g *Global) readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" || path == "" {
		data, err = io.ReadAll(g.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to read input").
			WithContext("path", path).
			Build()
	}
	return string(data), nil
}

// writeOutput writes text to path (stdout for "-"), keeping the mode of an existing file.
func (g *Global) writeOutput(path, text string) error {
	if path == "-" {
		_, err := io.WriteString(g.Stdout, text)
		return err
	}

	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err == nil {
		defer func() { _ = os.Remove(tmp.Name()) }()
		_, err = tmp.WriteString(text)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			err = os.Chmod(tmp.Name(), mode)
		}
		if err == nil {
			err = os.Rename(tmp.Name(), path)
		}
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write output").
			WithContext("path", path).
			Build()
	}
	return nil
}
