package main

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/mdexec/internal/dispatch"
	"git.home.luguber.info/inful/mdexec/internal/logfields"
	"git.home.luguber.info/inful/mdexec/internal/metrics"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	File        string        `arg:"" help:"Markdown document to execute ('-' reads stdin and writes stdout)"`
	Output      string        `short:"o" help:"Write the result to this path instead of back to FILE ('-' for stdout)"`
	Check       bool          `help:"Do not write anything; exit 1 when running would change the document"`
	Timeout     time.Duration `help:"Per-block execution timeout (overrides the configuration file)"`
	MetricsFile string        `name:"metrics-file" help:"Write Prometheus metrics in textfile format after the run"`
}

func (r *RunCmd) Run(g *Global) error {
	textfile := r.MetricsFile
	if textfile == "" {
		textfile = g.Config.Metrics.Textfile
	}
	var prom *metrics.PrometheusRecorder
	var rec metrics.Recorder
	if textfile != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		rec = prom
	}

	eng, err := g.newEngine(r.Timeout, rec)
	if err != nil {
		return err
	}

	text, err := g.readInput(r.File)
	if err != nil {
		return err
	}

	res, runErr := eng.Run(g.Ctx, text)
	if prom != nil {
		if err := prom.WriteTextfile(textfile); err != nil {
			g.logger().Warn("Failed to write metrics textfile", logfields.Path(textfile), logfields.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	reportFailures(g, res.Outcomes)

	if r.Check {
		if res.Changed(text) {
			g.logger().Info("Document is not up to date", logfields.Path(r.File))
			return errWouldChange
		}
		return nil
	}

	out := r.Output
	if out == "" {
		out = r.File
	}
	if out == "-" || out == "" {
		return g.writeOutput("-", res.Text)
	}
	if out == r.File && !res.Changed(text) {
		g.logger().Debug("Document unchanged", logfields.Path(out))
		return nil
	}
	return g.writeOutput(out, res.Text)
}

// reportFailures prints an error line for each block whose output could not be
// written; other failures are already visible in the document.
func reportFailures(g *Global, outcomes []dispatch.Outcome) {
	for _, o := range outcomes {
		if o.DeliveryErr == nil {
			continue
		}
		g.logger().Debug("Block output was not written",
			logfields.BlockID(o.BlockID),
			logfields.OutputID(o.OutputID),
			logfields.Line(o.Line),
			logfields.Error(o.DeliveryErr))
		fmt.Fprintln(g.Stderr, dispatch.FailureText(o.Lang, o.DeliveryErr))
	}
}
