// Package step defines the idempotent unit of provisioning work and the
// vocabulary shared by the steps, the executor and the reporting layer.
package step

// Step is a named, idempotent unit of work against the host.
// Running Apply on a host where Check reports StatusSatisfied must be a no-op
// in effect, and Apply must tolerate being re-run after a partial failure.
type Step interface {
	// ID returns the unique identifier for this step.
	ID() ID

	// DependsOn returns the IDs of steps that must succeed before this one.
	DependsOn() []ID

	// RequiresPrivilege reports whether Apply runs commands as root.
	RequiresPrivilege() bool

	// Check determines the current status of this step on the host.
	Check(ctx RunContext) (Status, error)

	// Plan returns the diff describing what Apply would change.
	Plan(ctx RunContext) (Diff, error)

	// Apply executes the step's changes.
	Apply(ctx RunContext) error

	// Explain returns human-readable context for this step.
	Explain(ctx ExplainContext) Explanation
}

// Conditioner is implemented by steps that attach a benign condition to a
// satisfied outcome, e.g. "already exists" for an install step or
// "not found" for a removal step.
type Conditioner interface {
	SatisfiedCondition() Kind
}

// ConditionOf returns the benign condition a satisfied step represents,
// or KindNone when the step does not report one.
func ConditionOf(s Step) Kind {
	if c, ok := s.(Conditioner); ok {
		return c.SatisfiedCondition()
	}
	return KindNone
}
