package execution

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// Observer is notified after every step result is recorded.
type Observer func(StepResult)

// Executor runs steps strictly in order.
//
// Each step is checked immediately before it runs, so a step sees the
// changes made by the ones before it. A step whose dependency failed or was
// skipped is skipped. An Apply error whose kind is in the benign set is
// recorded as a satisfied condition. A failure whose kind is in the abort set
// skips every remaining step. Cancellation is honoured between steps.
type Executor struct {
	dryRun   bool
	abortOn  map[step.Kind]bool
	benign   map[step.Kind]bool
	logger   ports.Logger
	observer Observer
}

// NewExecutor creates a new Executor that aborts on network failures and
// treats only already-existing resources as benign.
func NewExecutor() *Executor {
	return &Executor{
		abortOn: kindSet(step.KindNetwork),
		benign:  kindSet(step.KindAlreadyExists),
	}
}

func kindSet(kinds ...step.Kind) map[step.Kind]bool {
	set := make(map[step.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

func (e *Executor) clone() *Executor {
	c := *e
	c.abortOn = maps.Clone(e.abortOn)
	c.benign = maps.Clone(e.benign)
	return &c
}

// WithDryRun returns an Executor that checks and plans without applying.
func (e *Executor) WithDryRun(dryRun bool) *Executor {
	c := e.clone()
	c.dryRun = dryRun
	return c
}

// WithAbortOn returns an Executor that stops the sequence on the given kinds.
// Passing no kinds disables aborting.
func (e *Executor) WithAbortOn(kinds ...step.Kind) *Executor {
	c := e.clone()
	c.abortOn = kindSet(kinds...)
	return c
}

// WithBenign returns an Executor that records Apply errors of the given
// kinds as satisfied conditions instead of failures. Passing no kinds makes
// every Apply error a failure.
func (e *Executor) WithBenign(kinds ...step.Kind) *Executor {
	c := e.clone()
	c.benign = kindSet(kinds...)
	return c
}

// WithLogger returns an Executor that logs step progress.
func (e *Executor) WithLogger(logger ports.Logger) *Executor {
	c := e.clone()
	c.logger = logger
	return c
}

// WithObserver returns an Executor that reports each result to fn.
func (e *Executor) WithObserver(fn Observer) *Executor {
	c := e.clone()
	c.observer = fn
	return c
}

// ExecuteResult contains the results of an execution.
type ExecuteResult struct {
	Results     []StepResult
	Interrupted bool
	Aborted     bool
	AbortedBy   step.ID
	DryRun      bool
}

// ResultSummary provides aggregate counts over an execution.
type ResultSummary struct {
	Total     int
	Changed   int
	Unchanged int
	Failed    int
	Skipped   int
}

// Summary returns aggregate counts.
func (r ExecuteResult) Summary() ResultSummary {
	s := ResultSummary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch {
		case res.Failed():
			s.Failed++
		case res.Skipped():
			s.Skipped++
		case res.Changed():
			s.Changed++
		default:
			s.Unchanged++
		}
	}
	return s
}

// Failures returns the failed results.
func (r ExecuteResult) Failures() []StepResult {
	out := make([]StepResult, 0)
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// HasFailures returns true if any step failed.
func (r ExecuteResult) HasFailures() bool {
	for _, res := range r.Results {
		if res.Failed() {
			return true
		}
	}
	return false
}

// Succeeded returns true when every step completed and the run was not interrupted.
func (r ExecuteResult) Succeeded() bool {
	if r.Interrupted || r.Aborted {
		return false
	}
	for _, res := range r.Results {
		if res.Failed() || res.Skipped() {
			return false
		}
	}
	return true
}

// Result returns the result for a step ID.
func (r ExecuteResult) Result(id step.ID) (StepResult, bool) {
	for _, res := range r.Results {
		if res.StepID().Equals(id) {
			return res, true
		}
	}
	return StepResult{}, false
}

// Execute runs the steps in order. The error is non-nil only when the step
// list itself is invalid; step failures are reported in the results.
func (e *Executor) Execute(ctx context.Context, steps []step.Step) (ExecuteResult, error) {
	if err := ValidateOrder(steps); err != nil {
		return ExecuteResult{}, err
	}

	out := ExecuteResult{
		Results: make([]StepResult, 0, len(steps)),
		DryRun:  e.dryRun,
	}
	incomplete := make(map[string]bool)
	runCtx := step.NewRunContext(ctx, e.dryRun)

	for _, s := range steps {
		var result StepResult

		switch {
		case out.Interrupted || ctx.Err() != nil:
			out.Interrupted = true
			result = NewStepResult(s.ID(), step.StatusSkipped, step.NewInterruptedError(s.ID().String(), ctx.Err())).
				WithReason("interrupted")
		case out.Aborted:
			result = NewStepResult(s.ID(), step.StatusSkipped, nil).
				WithReason(fmt.Sprintf("aborted after %s failed", out.AbortedBy))
		default:
			result = e.executeStep(s, runCtx, incomplete)
		}

		if !result.Success() && !(e.dryRun && result.Status().NeedsAction()) {
			incomplete[s.ID().String()] = true
		}
		if result.Failed() {
			kind := result.Kind()
			if kind == step.KindInterrupted {
				out.Interrupted = true
			} else if e.abortOn[kind] {
				out.Aborted = true
				out.AbortedBy = s.ID()
			}
		}

		out.Results = append(out.Results, result)
		e.report(ctx, result)
	}

	return out, nil
}

// executeStep checks and, when needed, applies a single step.
func (e *Executor) executeStep(s step.Step, ctx step.RunContext, incomplete map[string]bool) StepResult {
	id := s.ID()

	for _, dep := range s.DependsOn() {
		if incomplete[dep.String()] {
			return NewStepResult(id, step.StatusSkipped, nil).
				WithReason(fmt.Sprintf("dependency %s did not complete", dep))
		}
	}

	start := time.Now()

	status, err := s.Check(ctx)
	if err != nil {
		return NewStepResult(id, step.StatusFailed, step.NewCheckFailedError(id.String(), err)).
			WithDuration(time.Since(start))
	}

	if status == step.StatusSatisfied {
		return NewStepResult(id, step.StatusSatisfied, nil).
			WithCondition(step.ConditionOf(s)).
			WithDuration(time.Since(start))
	}

	if ctx.DryRun() {
		diff, err := s.Plan(ctx)
		if err != nil {
			return NewStepResult(id, step.StatusFailed, step.NewApplyFailedError(id.String(), err)).
				WithDuration(time.Since(start))
		}
		return NewStepResult(id, status, nil).WithDiff(diff).WithDuration(time.Since(start))
	}

	err = s.Apply(ctx)
	duration := time.Since(start)

	if err != nil {
		if kind := step.KindOf(err); e.benign[kind] {
			return NewStepResult(id, step.StatusSatisfied, nil).
				WithCondition(kind).
				WithDuration(duration)
		}
		return NewStepResult(id, step.StatusFailed, step.NewApplyFailedError(id.String(), err)).
			WithDuration(duration)
	}

	return NewStepResult(id, step.StatusSatisfied, nil).
		WithChanged(true).
		WithDuration(duration)
}

func (e *Executor) report(ctx context.Context, result StepResult) {
	if e.observer != nil {
		e.observer(result)
	}
	if e.logger == nil {
		return
	}

	fields := []ports.Field{
		ports.F("step", result.StepID().String()),
		ports.F("status", result.Status().String()),
		ports.F("duration", result.Duration().String()),
	}
	switch {
	case result.Failed():
		fields = append(fields, ports.F("kind", result.Kind().String()), ports.Err(result.Error()))
		e.logger.Error(ctx, "step failed", fields...)
	case result.Skipped():
		fields = append(fields, ports.F("reason", result.Reason()))
		e.logger.Warn(ctx, "step skipped", fields...)
	default:
		fields = append(fields, ports.F("changed", result.Changed()))
		if c := result.Condition(); c != step.KindNone {
			fields = append(fields, ports.F("condition", c.String()))
		}
		e.logger.Info(ctx, "step finished", fields...)
	}
}
