package workflow

import (
	"fmt"
)

// Stage names a retrying phase of the run.
type Stage string

const (
	// StageSession is login and session confirmation
	StageSession Stage = "session"
	// StageListing is navigation to the location list
	StageListing Stage = "listing"
)

// Outcome classifies how a stage ended.
type Outcome int

const (
	// OutcomeSuccess means the stage completed
	OutcomeSuccess Outcome = iota
	// OutcomeTransient means every attempt failed; a later run may succeed
	OutcomeTransient
	// OutcomeFatal means the stage could not run at all (bad preconditions,
	// cancellation) and retrying would not help
	OutcomeFatal
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient-failure"
	case OutcomeFatal:
		return "fatal-failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result reports how a stage ended.
type Result struct {
	Stage    Stage
	Outcome  Outcome
	Attempts int

	// Err is the last failure seen, nil on success
	Err error

	// Listing is the navigator's result when login succeeded and the session
	// stage delegated to it
	Listing *Result
}

// OK reports whether the stage succeeded.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

func succeeded(stage Stage, attempts int) Result {
	return Result{Stage: stage, Outcome: OutcomeSuccess, Attempts: attempts}
}

func exhausted(stage Stage, attempts int, err error) Result {
	return Result{Stage: stage, Outcome: OutcomeTransient, Attempts: attempts, Err: err}
}

func fatal(stage Stage, attempts int, err error) Result {
	return Result{Stage: stage, Outcome: OutcomeFatal, Attempts: attempts, Err: err}
}

// PanicError wraps a value recovered from a panicking provider call.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("unexpected panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
