package execution

import (
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
)

// PlanEntry is what checking one step found: whether it would run, what it
// would change and, when the check failed, why.
type PlanEntry struct {
	step        step.Step
	status      step.Status
	diff        step.Diff
	explanation step.Explanation
	err         error
}

// Step returns the planned step.
func (e PlanEntry) Step() step.Step {
	return e.step
}

// Status is StatusSatisfied, StatusNeedsApply or, when Check or Plan
// failed, StatusUnknown.
func (e PlanEntry) Status() step.Status {
	return e.status
}

// Diff returns the planned change of a StatusNeedsApply entry.
func (e PlanEntry) Diff() step.Diff {
	return e.diff
}

// Explanation returns what the step does.
func (e PlanEntry) Explanation() step.Explanation {
	return e.explanation
}

// Error returns the error that made the status unknown, if any.
func (e PlanEntry) Error() error {
	return e.err
}

// PlanSummary counts plan entries by status.
type PlanSummary struct {
	Total      int
	NeedsApply int
	Satisfied  int
	Unknown    int
}

// Plan is the checked install sequence, in run order.
type Plan struct {
	entries []PlanEntry
}

// Len returns the number of entries.
func (p *Plan) Len() int {
	return len(p.entries)
}

// Entries returns all plan entries.
func (p *Plan) Entries() []PlanEntry {
	return p.entries
}

// NeedsApply returns the entries an install would apply or could not
// check.
func (p *Plan) NeedsApply() []PlanEntry {
	var out []PlanEntry
	for _, e := range p.entries {
		if e.status.NeedsAction() {
			out = append(out, e)
		}
	}
	return out
}

// HasChanges reports whether an install would apply anything.
func (p *Plan) HasChanges() bool {
	return len(p.NeedsApply()) > 0
}

// UpToDate reports whether every step is satisfied.
func (p *Plan) UpToDate() bool {
	s := p.Summary()
	return s.Satisfied == s.Total
}

// Summary counts the entries by status.
func (p *Plan) Summary() PlanSummary {
	summary := PlanSummary{Total: len(p.entries)}
	for _, e := range p.entries {
		switch e.status {
		case step.StatusSatisfied:
			summary.Satisfied++
		case step.StatusNeedsApply:
			summary.NeedsApply++
		default:
			summary.Unknown++
		}
	}
	return summary
}
