package refs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Phase is the state of a resolution run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelecting
	PhaseResolving
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelecting:
		return "selecting"
	case PhaseResolving:
		return "resolving"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Report summarises a resolution run. Warnings collects every non-fatal
// error: malformed entries, duplicate ids, permissive-mode failures and
// activity hook failures.
type Report struct {
	RunID  string
	Phase  Phase
	Policy Policy

	// Matched is the number of documents selected by the pattern.
	Matched int
	// Processed is the number of documents whose refs were walked.
	Processed int
	Resolved  int
	// Unresolved counts failed entries, including the fatal one.
	Unresolved int
	Skipped    int

	Warnings *multierror.Error
	Err      error
}

// Warn appends a non-fatal error.
func (r *Report) Warn(err error) {
	if r == nil || err == nil {
		return
	}
	r.Warnings = multierror.Append(r.Warnings, err)
}

// WarningList returns the recorded warnings in order.
func (r *Report) WarningList() []error {
	if r == nil || r.Warnings == nil {
		return nil
	}
	return append([]error(nil), r.Warnings.Errors...)
}

// HasWarnings reports whether any warning was recorded.
func (r *Report) HasWarnings() bool {
	return r != nil && r.Warnings != nil && len(r.Warnings.Errors) > 0
}

func (r *Report) fail(err error) error {
	r.Phase = PhaseFailed
	r.Err = err
	return err
}
