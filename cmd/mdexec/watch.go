package main

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/mdexec/internal/engine"
	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/logfields"
	"git.home.luguber.info/inful/mdexec/internal/metrics"
	"git.home.luguber.info/inful/mdexec/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	File          string        `arg:"" help:"Markdown document to watch"`
	Output        string        `short:"o" help:"Write results to this path instead of back to FILE"`
	Every         time.Duration `help:"Also re-run on this interval, even without changes"`
	Debounce      time.Duration `help:"Quiet period after a change before re-running" default:"300ms"`
	Timeout       time.Duration `help:"Per-block execution timeout (overrides the configuration file)"`
	MetricsListen string        `name:"metrics-listen" help:"Serve Prometheus metrics on this address, e.g. :9464"`
}

func (w *WatchCmd) Run(g *Global) error {
	prom := metrics.NewPrometheusRecorder(nil)
	eng, err := g.newEngine(w.Timeout, prom)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(g.Ctx)
	defer cancel()

	addr := w.MetricsListen
	if addr == "" {
		addr = g.Config.Metrics.Listen
	}
	if addr != "" {
		stop, err := serveMetrics(ctx, g, addr, prom)
		if err != nil {
			return err
		}
		defer stop()
	}

	textfile := g.Config.Metrics.Textfile
	watcher := watch.New(w.File, w.Output, eng,
		watch.WithDebounce(w.Debounce),
		watch.WithInterval(w.Every),
		watch.WithLogger(g.logger()),
		watch.WithAfterRun(func(res *engine.Result, err error) {
			if err == nil {
				reportFailures(g, res.Outcomes)
			}
			if textfile != "" {
				if werr := prom.WriteTextfile(textfile); werr != nil {
					g.logger().Warn("Failed to write metrics textfile", logfields.Path(textfile), logfields.Error(werr))
				}
			}
		}),
	)
	return watcher.Watch(ctx)
}

// serveMetrics exposes /metrics until ctx is done or stop is called.
func serveMetrics(ctx context.Context, g *Global, addr string, prom *metrics.PrometheusRecorder) (func(), error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to listen for metrics").
			WithContext("addr", addr).
			Build()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", prom.HTTPHandler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			g.logger().Error("Metrics server error", logfields.Error(err))
		}
	}()
	g.logger().Info("Serving metrics", "addr", ln.Addr().String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			g.logger().Warn("Metrics server shutdown error", logfields.Error(err))
		}
	}, nil
}
