package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/adapters/metrics"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/execution"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// Operation names used in logs and metric files.
const (
	OperationInstall = "install"
	OperationRemove  = "remove"
)

// benignKinds lists the Apply error kinds each operation records as
// conditions. Absence only counts as done when removing.
var benignKinds = map[string][]step.Kind{
	OperationInstall: {step.KindAlreadyExists},
	OperationRemove:  {step.KindAlreadyExists, step.KindNotFound},
}

// Errors summarising a run for the caller's exit status.
var (
	ErrInterrupted = errors.New("interrupted")
	ErrRunFailed   = errors.New("one or more steps failed")
)

// InstallOptions controls Install.
type InstallOptions struct {
	DryRun bool
	// RemoveOnFailure runs the removal sequence when the install fails.
	RemoveOnFailure bool
}

// InstallReport is the outcome of Install.
type InstallReport struct {
	Result execution.ExecuteResult
	// Removal is set when RemoveOnFailure cleaned up after a failure.
	Removal *execution.ExecuteResult
	// MetricsPath is the textfile written for this run, if any.
	MetricsPath string
}

// RunError maps a finished run onto ErrInterrupted, ErrRunFailed or nil.
func RunError(r execution.ExecuteResult) error {
	switch {
	case r.Interrupted:
		return ErrInterrupted
	case r.Aborted, r.HasFailures():
		return ErrRunFailed
	}
	return nil
}

// Plan checks every install step without changing the host.
func (a *App) Plan(ctx context.Context) (*execution.Plan, error) {
	plan, err := a.planner.Plan(ctx, a.provider.InstallSteps())
	if err != nil {
		return nil, fmt.Errorf("failed to plan: %w", err)
	}
	return plan, nil
}

// Install runs the install sequence. The error is non-nil only when the
// run could not start; step failures are in the report.
func (a *App) Install(ctx context.Context, opts InstallOptions) (InstallReport, error) {
	var report InstallReport

	result, path, err := a.execute(ctx, OperationInstall, a.provider.InstallSteps(), opts.DryRun)
	if err != nil {
		return report, err
	}
	report.Result = result
	report.MetricsPath = path

	if opts.RemoveOnFailure && !opts.DryRun && !result.Interrupted && RunError(result) != nil {
		a.logger.Warn(ctx, "install failed, removing partial installation")
		removal, _, err := a.execute(ctx, OperationRemove, a.provider.RemoveSteps(), false)
		if err != nil {
			return report, err
		}
		report.Removal = &removal
	}
	return report, nil
}

// Remove runs the removal sequence. Every step runs regardless of the
// others.
func (a *App) Remove(ctx context.Context, dryRun bool) (execution.ExecuteResult, error) {
	result, _, err := a.execute(ctx, OperationRemove, a.provider.RemoveSteps(), dryRun)
	return result, err
}

func (a *App) execute(ctx context.Context, operation string, steps []step.Step, dryRun bool) (execution.ExecuteResult, string, error) {
	logger := a.logger.With(ports.F("operation", operation))
	ctx = ports.ContextWithLogger(ctx, logger)

	recorder := metrics.NewRecorder(operation)
	executor := a.executor.
		WithLogger(logger).
		WithDryRun(dryRun).
		WithBenign(benignKinds[operation]...).
		WithObserver(recorder.ObserveStep)

	logger.Info(ctx, "starting", ports.F("steps", len(steps)), ports.F("dry_run", dryRun))
	start := time.Now()

	result, err := executor.Execute(ctx, steps)
	if err != nil {
		return result, "", fmt.Errorf("failed to %s: %w", operation, err)
	}

	took := time.Since(start)
	summary := result.Summary()
	logger.Info(ctx, "finished",
		ports.F("changed", summary.Changed),
		ports.F("unchanged", summary.Unchanged),
		ports.F("failed", summary.Failed),
		ports.F("skipped", summary.Skipped),
		ports.F("interrupted", result.Interrupted),
		ports.F("duration", took.Round(time.Millisecond).String()),
	)

	if dryRun {
		return result, "", nil
	}
	recorder.ObserveRun(result, took, time.Now())
	return result, a.publish(context.WithoutCancel(ctx), logger, recorder), nil
}

// publish writes the run metrics for the textfile collector. Failures are
// logged; they never fail the run.
func (a *App) publish(ctx context.Context, logger ports.Logger, recorder *metrics.Recorder) string {
	if a.textfile == nil {
		return ""
	}
	path, err := a.textfile.Write(ctx, recorder)
	switch {
	case errors.Is(err, metrics.ErrNoCollectorDir):
		logger.Debug(ctx, "textfile collector directory missing, metrics not written")
		return ""
	case err != nil:
		logger.Warn(ctx, "failed to write run metrics", ports.Err(err))
		return ""
	}
	logger.Debug(ctx, "run metrics written", ports.F("path", path))
	return path
}
