// Package dispatch runs the executable blocks of a document in source order and
// writes each block's output, or an inline error line, into its target block.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/mdexec/internal/blockserver"
	"git.home.luguber.info/inful/mdexec/internal/docmodel"
	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/interp"
	"git.home.luguber.info/inful/mdexec/internal/logfields"
	"git.home.luguber.info/inful/mdexec/internal/metrics"
	"git.home.luguber.info/inful/mdexec/internal/registry"
)

const serverShutdownTimeout = 5 * time.Second

// Options configures a Dispatcher.
type Options struct {
	Languages *interp.Languages
	// Timeout is the default execution budget per block; zero means none.
	Timeout time.Duration
	// Env holds extra KEY=VALUE pairs for every block.
	Env []string
	// Binary is the mdexec executable handed to shell preludes.
	Binary   string
	Recorder metrics.Recorder
	Logger   *slog.Logger
	// Section returns the heading a byte offset falls under, for log context.
	Section func(offset int) string
}

// Dispatcher executes blocks against one registry at a time.
type Dispatcher struct {
	opts Options
}

// New returns a dispatcher; nil options fall back to the defaults.
func New(opts Options) *Dispatcher {
	if opts.Languages == nil {
		opts.Languages = interp.DefaultLanguages()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{opts: opts}
}

// Run executes every executable block of reg's document, strictly one at a time.
// A failing block never stops the run: its error is written as content and the
// next block runs. The returned outcomes are in source order.
func (d *Dispatcher) Run(ctx context.Context, reg *registry.Registry) []Outcome {
	blocks := reg.Document().Executables()
	outcomes := make([]Outcome, len(blocks))
	for i, b := range blocks {
		outcomes[i] = Outcome{
			BlockID:  b.ID(),
			Lang:     b.Lang(),
			OutputID: b.OutputID(),
			Line:     b.Line,
			Section:  d.section(b),
			State:    StatePending,
		}
	}

	srv := blockserver.New(reg, d.opts.Logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
		defer cancel()
		if err := srv.Close(closeCtx); err != nil {
			d.opts.Logger.Warn("Failed to close block server", logfields.Error(err))
		}
	}()
	socket := func() (string, error) { return srv.Start(ctx) }

	for i, b := range blocks {
		d.runBlock(ctx, reg, b, socket, &outcomes[i])
	}
	return outcomes
}

func (d *Dispatcher) runBlock(ctx context.Context, reg *registry.Registry, b *docmodel.Block, socket func() (string, error), out *Outcome) {
	log := d.opts.Logger.With(
		logfields.BlockID(out.BlockID),
		logfields.Language(out.Lang),
		logfields.Line(out.Line),
	)
	if out.Section != "" {
		log = log.With(logfields.Section(out.Section))
	}

	out.State = StateRunning
	log.Debug("Running block", logfields.State(out.State.String()))

	start := time.Now()
	stdout, err := d.execute(ctx, reg, b, socket, log)
	out.Duration = time.Since(start)
	d.opts.Recorder.ObserveBlockDuration(out.Lang, out.Duration)

	if err != nil {
		out.fail(err)
		log.Warn("Block failed", logfields.Error(err), logfields.DurationMS(ms(out.Duration)))
	} else {
		out.State = StateSucceeded
		out.Output = strings.TrimRight(stdout, " \t\r\n")
		log.Debug("Block succeeded", logfields.DurationMS(ms(out.Duration)))
	}
	defer func() {
		result := metrics.ResultSucceeded
		if out.State == StateFailed {
			result = metrics.ResultFailed
		}
		d.opts.Recorder.IncBlockResult(out.Lang, result)
	}()

	if out.OutputID == "" {
		if out.Output != "" {
			log.Info("Block output", "output", out.Output)
		}
		return
	}

	h, err := target(reg, out.OutputID)
	if err != nil {
		out.State = StateFailed
		out.DeliveryErr = err
		log.Error("Cannot write block output", logfields.OutputID(out.OutputID), logfields.Error(err))
		return
	}
	if err := h.SetContent(out.Output); err != nil {
		// The output would break the target apart; the error line goes in instead.
		out.fail(err)
		log.Warn("Block output rejected", logfields.OutputID(out.OutputID), logfields.Error(err))
		if err := h.SetContent(out.Output); err != nil {
			out.DeliveryErr = err
			log.Error("Cannot write block output", logfields.OutputID(out.OutputID), logfields.Error(err))
			return
		}
	}
	out.Delivered = true
}

func (d *Dispatcher) execute(ctx context.Context, reg *registry.Registry, b *docmodel.Block, socket func() (string, error), log *slog.Logger) (string, error) {
	in, ok := d.opts.Languages.Lookup(b.Lang())
	if !ok {
		return "", errors.NotFoundError(fmt.Sprintf("unknown language %q", b.Lang())).
			WithContext("language", b.Lang()).
			Build()
	}

	src := reg.Document().Content(b)
	if h, ok := reg.HandleFor(b); ok {
		// Earlier blocks may have rewritten this one.
		src = h.Content()
	}

	timeout := d.opts.Timeout
	if t, ok := b.Info.Timeout(); ok {
		timeout = t
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout bytes.Buffer
	err := in.Run(runCtx, src, &interp.Context{
		Registry: reg,
		Stdout:   &stdout,
		Logger:   log,
		BlockID:  b.ID(),
		Env:      d.opts.Env,
		Timeout:  timeout,
		Binary:   d.opts.Binary,
		Socket:   socket,
	})
	return stdout.String(), err
}

// target returns the block named id, which must exist exactly once and be an
// output or region block.
func target(reg *registry.Registry, id string) (*registry.Handle, error) {
	h, err := reg.Get(id)
	switch {
	case errors.HasCategory(err, errors.CategoryNotFound):
		return nil, errors.NotFoundError(fmt.Sprintf("output-id %q matches no block", id)).
			WithContext("id", id).
			Build()
	case errors.HasCategory(err, errors.CategoryNotUnique):
		return nil, errors.NotUniqueError(fmt.Sprintf("output-id %q matches more than one block", id)).
			WithContext("id", id).
			Build()
	case err != nil:
		return nil, err
	}
	if !h.Kind().IsTarget() {
		return nil, errors.ValidationError(fmt.Sprintf("output-id %q names a %s block, which cannot receive output", id, h.Kind())).
			WithContext("id", id).
			WithContext("line", h.Line()).
			Build()
	}
	return h, nil
}

func (d *Dispatcher) section(b *docmodel.Block) string {
	if d.opts.Section == nil {
		return ""
	}
	return d.opts.Section(b.Start)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
