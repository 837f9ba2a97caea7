package metrics

import "time"

// ResultLabel enumerates per-block result categories for counters.
type ResultLabel string

const (
	ResultSucceeded ResultLabel = "succeeded"
	ResultFailed    ResultLabel = "failed"
)

// OutcomeLabel enumerates whole-run outcomes.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success" // every block succeeded
	OutcomePartial OutcomeLabel = "partial" // at least one block wrote an inline error
	OutcomeFailed  OutcomeLabel = "failed"  // the document could not be parsed
)

// Recorder defines observability hooks for runs and block executions.
// Implementations may forward to Prometheus or any other backend.
type Recorder interface {
	ObserveBlockDuration(lang string, d time.Duration)
	IncBlockResult(lang string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome OutcomeLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBlockDuration(string, time.Duration) {}
func (NoopRecorder) IncBlockResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(OutcomeLabel)                 {}
