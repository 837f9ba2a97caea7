package dispatch

import (
	"strings"
	"time"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
)

// State is the lifecycle position of one executable block.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome records what happened to one executable block.
type Outcome struct {
	BlockID  string
	Lang     string
	OutputID string
	Line     int
	Section  string

	State State
	// Output is the content written to the target: trimmed stdout on success,
	// the error line on failure.
	Output string
	// Err is the execution error of a failed block.
	Err error
	// DeliveryErr is set when the output could not be written to a target.
	DeliveryErr error
	// Delivered reports whether Output was written into the document.
	Delivered bool

	Duration time.Duration
}

// Failed reports whether the block failed to execute or deliver its output.
func (o Outcome) Failed() bool {
	return o.State == StateFailed
}

// fail marks the block failed with err as its inline output.
func (o *Outcome) fail(err error) {
	o.State = StateFailed
	o.Err = err
	o.Output = FailureText(o.Lang, err)
}

// FailureText renders the inline error line written in place of output.
func FailureText(lang string, err error) string {
	return "❌ " + lang + " error: " + singleLine(errors.MessageOf(err))
}

func singleLine(msg string) string {
	msg = strings.TrimSpace(msg)
	if !strings.ContainsAny(msg, "\r\n") {
		return msg
	}
	var parts []string
	for _, l := range strings.FieldsFunc(msg, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}

// Summary counts outcomes by result.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summarize counts the outcomes of a run.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Failed() {
			s.Failed++
		} else if o.State == StateSucceeded {
			s.Succeeded++
		}
	}
	return s
}
