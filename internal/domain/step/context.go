package step

import "context"

// RunContext is passed to Check, Plan and Apply. It carries the caller's
// cancellation and whether the run only plans.
type RunContext struct {
	ctx    context.Context
	dryRun bool
}

// NewRunContext wraps ctx. Steps never apply changes when dryRun is set.
func NewRunContext(ctx context.Context, dryRun bool) RunContext {
	return RunContext{ctx: ctx, dryRun: dryRun}
}

// Context returns the run's context.
func (r RunContext) Context() context.Context {
	return r.ctx
}

// DryRun reports whether the run only checks and plans.
func (r RunContext) DryRun() bool {
	return r.dryRun
}

// ExplainContext is passed to Explain.
type ExplainContext struct {
	// Verbose asks for the long form.
	Verbose bool
}
