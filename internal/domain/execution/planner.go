package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
)

// ErrInvalidOrder is returned when a step list is not executable in order.
var ErrInvalidOrder = errors.New("invalid step order")

// Planner builds a Plan by checking each step without applying anything.
type Planner struct {
	verbose bool
}

// NewPlanner creates a new Planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// WithVerbose returns a Planner that requests verbose explanations.
func (p *Planner) WithVerbose(verbose bool) *Planner {
	return &Planner{verbose: verbose}
}

// Plan checks every step in order. A step whose check fails is recorded
// as StatusUnknown with the error rather than ending planning, since later
// checks often depend on changes earlier steps would make.
func (p *Planner) Plan(ctx context.Context, steps []step.Step) (*Plan, error) {
	if err := ValidateOrder(steps); err != nil {
		return nil, err
	}

	plan := &Plan{}
	runCtx := step.NewRunContext(ctx, true)
	explainCtx := step.ExplainContext{Verbose: p.verbose}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("planning interrupted: %w", err)
		}
		entry := p.planStep(s, runCtx)
		entry.explanation = s.Explain(explainCtx)
		plan.entries = append(plan.entries, entry)
	}

	return plan, nil
}

// planStep checks a single step and generates a PlanEntry.
func (p *Planner) planStep(s step.Step, ctx step.RunContext) PlanEntry {
	status, err := s.Check(ctx)
	if err != nil {
		return PlanEntry{step: s, status: step.StatusUnknown, err: err}
	}

	var diff step.Diff
	if status == step.StatusNeedsApply {
		diff, err = s.Plan(ctx)
		if err != nil {
			return PlanEntry{step: s, status: step.StatusUnknown, err: err}
		}
	}

	return PlanEntry{step: s, status: status, diff: diff}
}

// ValidateOrder checks that step IDs are unique and that every dependency
// appears before the step that depends on it.
func ValidateOrder(steps []step.Step) error {
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		id := s.ID().String()
		if seen[id] {
			return fmt.Errorf("%w: duplicate step %q", ErrInvalidOrder, id)
		}
		for _, dep := range s.DependsOn() {
			if !seen[dep.String()] {
				return fmt.Errorf("%w: step %q depends on %q which does not run before it", ErrInvalidOrder, id, dep.String())
			}
		}
		seen[id] = true
	}
	return nil
}
