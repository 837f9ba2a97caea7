// Package watch re-runs a document whenever it changes on disk, and optionally
// on a fixed interval.
package watch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/zeebo/blake3"

	"git.home.luguber.info/inful/mdexec/internal/engine"
	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/logfields"
)

// DefaultDebounce is the quiet period after the last file event before a re-run.
const DefaultDebounce = 300 * time.Millisecond

// Runner executes document text.
type Runner interface {
	Run(ctx context.Context, text string) (*engine.Result, error)
}

// Watcher runs one input document and writes the result to an output path,
// which may be the input itself.
type Watcher struct {
	input    string
	output   string
	runner   Runner
	debounce time.Duration
	every    time.Duration
	logger   *slog.Logger
	afterRun func(*engine.Result, error)

	mu sync.Mutex
	// seen is the digest of the input text last processed or written by us.
	seen    [32]byte
	hasSeen bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithInterval re-runs the document every d even when it did not change.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.every = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithAfterRun registers a callback invoked after every run attempt.
func WithAfterRun(fn func(*engine.Result, error)) Option {
	return func(w *Watcher) { w.afterRun = fn }
}

// New creates a watcher. An empty output writes back to input.
func New(input, output string, runner Runner, options ...Option) *Watcher {
	if output == "" {
		output = input
	}
	w := &Watcher{
		input:    input,
		output:   output,
		runner:   runner,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// RunOnce reads the input, runs it and writes the result when it differs.
//
// Unless force is set, input identical to what the watcher last processed or
// wrote is skipped; this is how the watcher ignores its own writes.
// It reports whether a run happened.
func (w *Watcher) RunOnce(ctx context.Context, force bool) (bool, error) {
	data, err := os.ReadFile(w.input)
	if err != nil {
		return false, errors.WrapError(err, errors.CategoryFileSystem, "failed to read document").
			WithContext("path", w.input).
			Build()
	}

	digest := blake3.Sum256(data)
	w.mu.Lock()
	unchanged := w.hasSeen && digest == w.seen
	w.mu.Unlock()
	if unchanged && !force {
		w.logger.Debug("Document unchanged; skipping run", logfields.Path(w.input))
		return false, nil
	}

	res, err := w.runner.Run(ctx, string(data))
	if err == nil {
		err = w.write(data, res.Text)
	}
	if w.afterRun != nil {
		w.afterRun(res, err)
	}
	if err != nil {
		// Remember the input so an unchanged broken document is not retried on every event.
		w.remember(digest)
		return true, err
	}

	if w.output == w.input {
		w.remember(blake3.Sum256([]byte(res.Text)))
	} else {
		w.remember(digest)
	}
	return true, nil
}

func (w *Watcher) remember(digest [32]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen = digest
	w.hasSeen = true
}

func (w *Watcher) write(input []byte, text string) error {
	if w.output == w.input && string(input) == text {
		return nil
	}
	if w.output != w.input {
		if existing, err := os.ReadFile(w.output); err == nil && string(existing) == text {
			return nil
		}
	}

	mode := fs.FileMode(0o644)
	if fi, err := os.Stat(w.input); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := writeAtomic(w.output, []byte(text), mode); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write document").
			WithContext("path", w.output).
			Build()
	}
	w.logger.Info("Document updated", logfields.Path(w.output))
	return nil
}

// writeAtomic writes data to a temporary file next to path and renames it into place.
func writeAtomic(path string, data []byte, mode fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Watch runs the document once and then again after every change until ctx is
// done. Runs never overlap; changes during a run queue exactly one more run.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to create file watcher").Build()
	}
	defer func() { _ = fw.Close() }()

	// Watch the directory: editors and our own writes replace the file by rename.
	dir := filepath.Dir(w.input)
	if err := fw.Add(dir); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch directory").
			WithContext("path", dir).
			Build()
	}

	requests := make(chan bool, 1)
	request := func(force bool) {
		select {
		case requests <- force:
		default:
		}
	}
	trigger := w.debouncer(func() { request(false) })

	var sched gocron.Scheduler
	if w.every > 0 {
		sched, err = w.schedule(func() { request(true) })
		if err != nil {
			return err
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				w.logger.Warn("Scheduler shutdown error", logfields.Error(err))
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx, requests)
	}()
	defer wg.Wait()

	request(true)
	w.logger.Info("Watching document", logfields.Path(w.input))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping watcher", logfields.Path(w.input))
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(ev) {
				w.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				trigger()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	a, errA := filepath.Abs(ev.Name)
	b, errB := filepath.Abs(w.input)
	if errA != nil || errB != nil {
		return filepath.Clean(ev.Name) == filepath.Clean(w.input)
	}
	return a == b
}

// debouncer returns a trigger that calls fn once events stop for w.debounce.
func (w *Watcher) debouncer(fn func()) func() {
	var mu sync.Mutex
	var timer *time.Timer
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, fn)
	}
}

func (w *Watcher) schedule(fn func()) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to create gocron scheduler").Build()
	}
	if _, err := s.NewJob(
		gocron.DurationJob(w.every),
		gocron.NewTask(fn),
		gocron.WithName(fmt.Sprintf("rerun-%s", filepath.Base(w.input))),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = s.Shutdown()
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to schedule periodic run").
			WithContext("every", w.every.String()).
			Build()
	}
	s.Start()
	w.logger.Info("Scheduled periodic runs", slog.Duration("every", w.every))
	return s, nil
}

// worker processes run requests one at a time. A request arriving during a run
// is coalesced into the buffered channel slot and handled right after.
func (w *Watcher) worker(ctx context.Context, requests <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case force := <-requests:
			ran, err := w.RunOnce(ctx, force)
			switch {
			case err != nil && stderrors.Is(err, context.Canceled):
				return
			case err != nil:
				w.logger.Error("Run failed", logfields.Path(w.input), logfields.Error(err))
			case ran:
				w.logger.Debug("Run finished", logfields.Path(w.input))
			}
		}
	}
}
