// Package execution runs provisioning steps in order and records their outcomes.
package execution

import (
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
)

// StepResult captures the outcome of executing a single step.
type StepResult struct {
	stepID    step.ID
	status    step.Status
	changed   bool
	condition step.Kind
	err       error
	reason    string
	duration  time.Duration
	diff      step.Diff
}

// NewStepResult creates a new StepResult.
func NewStepResult(stepID step.ID, status step.Status, err error) StepResult {
	return StepResult{
		stepID: stepID,
		status: status,
		err:    err,
	}
}

// StepID returns the ID of the step that was executed.
func (r StepResult) StepID() step.ID {
	return r.stepID
}

// Status returns the final status of the step.
func (r StepResult) Status() step.Status {
	return r.status
}

// Changed returns true if Apply ran and modified the host.
func (r StepResult) Changed() bool {
	return r.changed
}

// Condition returns the benign condition of a no-op outcome
// (KindAlreadyExists or KindNotFound), or KindNone.
func (r StepResult) Condition() step.Kind {
	return r.condition
}

// Error returns any error that occurred during execution.
func (r StepResult) Error() error {
	return r.err
}

// Kind returns the error kind for failed results and the condition otherwise.
func (r StepResult) Kind() step.Kind {
	if r.err != nil {
		return step.KindOf(r.err)
	}
	return r.condition
}

// Reason explains why a step was skipped.
func (r StepResult) Reason() string {
	return r.reason
}

// Duration returns how long the step took to execute.
func (r StepResult) Duration() time.Duration {
	return r.duration
}

// Diff returns the planned change (populated in dry runs).
func (r StepResult) Diff() step.Diff {
	return r.diff
}

// Success returns true if the step completed successfully.
func (r StepResult) Success() bool {
	return r.status == step.StatusSatisfied
}

// Skipped returns true if the step was skipped.
func (r StepResult) Skipped() bool {
	return r.status == step.StatusSkipped
}

// Failed returns true if the step failed.
func (r StepResult) Failed() bool {
	return r.status == step.StatusFailed
}

// WithDuration returns a new StepResult with duration set.
func (r StepResult) WithDuration(d time.Duration) StepResult {
	r.duration = d
	return r
}

// WithDiff returns a new StepResult with diff set.
func (r StepResult) WithDiff(d step.Diff) StepResult {
	r.diff = d
	return r
}

// WithChanged returns a new StepResult with the changed flag set.
func (r StepResult) WithChanged(changed bool) StepResult {
	r.changed = changed
	return r
}

// WithCondition returns a new StepResult with a benign condition set.
func (r StepResult) WithCondition(kind step.Kind) StepResult {
	r.condition = kind
	return r
}

// WithReason returns a new StepResult with a skip reason set.
func (r StepResult) WithReason(reason string) StepResult {
	r.reason = reason
	return r
}
