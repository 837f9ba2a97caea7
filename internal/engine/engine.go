// Package engine turns a Markdown document into its executed form.
//
// One run parses the text, builds a block registry, executes every executable
// block in source order and serialises the document with outputs written back.
// Nothing survives a run except the returned text.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/mdexec/internal/dispatch"
	"git.home.luguber.info/inful/mdexec/internal/docmodel"
	"git.home.luguber.info/inful/mdexec/internal/interp"
	"git.home.luguber.info/inful/mdexec/internal/logfields"
	"git.home.luguber.info/inful/mdexec/internal/markdown"
	"git.home.luguber.info/inful/mdexec/internal/metrics"
	"git.home.luguber.info/inful/mdexec/internal/registry"
)

// Engine runs documents. It holds configuration only and may be reused.
type Engine struct {
	languages *interp.Languages
	timeout   time.Duration
	env       []string
	binary    string
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages sets the language table used to resolve interpreters.
func WithLanguages(l *interp.Languages) Option {
	return func(e *Engine) { e.languages = l }
}

// WithTimeout sets the default per-block execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithEnv adds KEY=VALUE pairs to the environment of every block.
func WithEnv(env ...string) Option {
	return func(e *Engine) { e.env = append(e.env, env...) }
}

// WithBinary sets the mdexec executable path exposed to shell preludes.
func WithBinary(path string) Option {
	return func(e *Engine) { e.binary = path }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine with the default language table and no timeout.
func New(options ...Option) *Engine {
	e := &Engine{
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.languages == nil {
		e.languages = interp.DefaultLanguages()
	}
	return e
}

// Result is the product of one run.
type Result struct {
	RunID    string
	Text     string
	Outcomes []dispatch.Outcome
	Duration time.Duration
}

// Changed reports whether the run produced text different from its input.
func (r *Result) Changed(input string) bool {
	return r.Text != input
}

// Summary counts the block outcomes of the run.
func (r *Result) Summary() dispatch.Summary {
	return dispatch.Summarize(r.Outcomes)
}

// Run executes text and returns the rewritten document.
//
// A malformed document is a fatal error and yields no result. Block failures
// are not errors: they are written into the document as inline error lines
// and reported in Result.Outcomes.
func (e *Engine) Run(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := e.logger.With(logfields.RunID(runID))

	doc, err := docmodel.Parse(text)
	if err != nil {
		e.recorder.IncRunOutcome(metrics.OutcomeFailed)
		return nil, err
	}

	ov, err := readOverrides(doc.Frontmatter.Raw)
	if err != nil {
		e.recorder.IncRunOutcome(metrics.OutcomeFailed)
		return nil, err
	}

	timeout := e.timeout
	if ov.timeout > 0 {
		timeout = ov.timeout
	}

	body := text[doc.Frontmatter.End:]
	outline := markdown.ParseOutline([]byte(body), doc.Frontmatter.End)

	reg := registry.New(doc)
	log.Debug("Document parsed",
		slog.Int("blocks", len(doc.Blocks)),
		slog.Int("identified", reg.Len()),
		slog.Int("executable", len(doc.Executables())))

	d := dispatch.New(dispatch.Options{
		Languages: e.languages,
		Timeout:   timeout,
		Env:       append(append([]string{}, e.env...), ov.env...),
		Binary:    e.binary,
		Recorder:  e.recorder,
		Logger:    log,
		Section:   outline.SectionAt,
	})
	outcomes := d.Run(ctx, reg)

	out, err := reg.Render()
	if err != nil {
		e.recorder.IncRunOutcome(metrics.OutcomeFailed)
		return nil, err
	}

	res := &Result{
		RunID:    runID,
		Text:     out,
		Outcomes: outcomes,
		Duration: time.Since(start),
	}

	sum := res.Summary()
	outcome := metrics.OutcomeSuccess
	if sum.Failed > 0 {
		outcome = metrics.OutcomePartial
	}
	e.recorder.ObserveRunDuration(res.Duration)
	e.recorder.IncRunOutcome(outcome)

	log.Info("Run complete",
		slog.Int("blocks", sum.Total),
		slog.Int("succeeded", sum.Succeeded),
		slog.Int("failed", sum.Failed),
		slog.Bool("changed", res.Changed(text)),
		logfields.DurationMS(float64(res.Duration)/float64(time.Millisecond)))

	return res, nil
}

// Run executes text with the default engine.
func Run(text string) (string, error) {
	res, err := New().Run(context.Background(), text)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
