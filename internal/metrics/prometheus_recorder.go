package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
)

const namespace = "mdexec"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg           *prom.Registry
	blockDuration *prom.HistogramVec
	blockResults  *prom.CounterVec
	runDuration   prom.Histogram
	runOutcomes   *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		blockDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "block_duration_seconds",
			Help:      "Execution time of individual blocks",
			Buckets:   prom.DefBuckets,
		}, []string{"language"}),
		blockResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "block_results_total",
			Help:      "Block executions by language and result",
		}, []string{"language", "result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total duration of document runs",
			Buckets:   prom.DefBuckets,
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Document runs by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.blockDuration, pr.blockResults, pr.runDuration, pr.runOutcomes)
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.reg
}

func (p *PrometheusRecorder) ObserveBlockDuration(lang string, d time.Duration) {
	if p == nil || p.blockDuration == nil {
		return
	}
	p.blockDuration.WithLabelValues(lang).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBlockResult(lang string, result ResultLabel) {
	if p == nil || p.blockResults == nil {
		return
	}
	p.blockResults.WithLabelValues(lang, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome OutcomeLabel) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(string(outcome)).Inc()
}

// WriteTextfile writes the current metrics in the text exposition format, for
// node_exporter's textfile collector. The file is replaced atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write metrics textfile").
			WithContext("path", path).
			Build()
	}
	return nil
}
