package execution

import (
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
)

// configurableStep is a test double whose behaviour is set per test.
type configurableStep struct {
	id        step.ID
	deps      []step.ID
	status    step.Status
	checkErr  error
	condition step.Kind
	diff      step.Diff
	applyFn   func(step.RunContext) error
	applied   int
}

func newConfigurableStep(id string, deps ...string) *configurableStep {
	depIDs := make([]step.ID, 0, len(deps))
	for _, d := range deps {
		depIDs = append(depIDs, step.MustNewID(d))
	}
	return &configurableStep{
		id:     step.MustNewID(id),
		deps:   depIDs,
		status: step.StatusNeedsApply,
	}
}

func (s *configurableStep) ID() step.ID             { return s.id }
func (s *configurableStep) DependsOn() []step.ID    { return s.deps }
func (s *configurableStep) RequiresPrivilege() bool { return true }

func (s *configurableStep) Check(_ step.RunContext) (step.Status, error) {
	return s.status, s.checkErr
}

func (s *configurableStep) Plan(_ step.RunContext) (step.Diff, error) {
	return s.diff, nil
}

func (s *configurableStep) Apply(ctx step.RunContext) error {
	s.applied++
	if s.applyFn != nil {
		return s.applyFn(ctx)
	}
	return nil
}

func (s *configurableStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation("test step "+s.id.String(), "")
}

func (s *configurableStep) SatisfiedCondition() step.Kind {
	return s.condition
}

func steps(s ...*configurableStep) []step.Step {
	out := make([]step.Step, 0, len(s))
	for _, x := range s {
		out = append(out, x)
	}
	return out
}
