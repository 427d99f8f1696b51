package app

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/service"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// Verdict is the outcome of a status check.
type Verdict string

// Status verdicts.
const (
	VerdictActive    Verdict = "active"
	VerdictRestarted Verdict = "restarted"
	VerdictFailed    Verdict = "failed"
	VerdictNotFound  Verdict = "not-found"
)

// StatusReport is the result of StatusChecker.Check.
type StatusReport struct {
	Unit        string
	Verdict     Verdict
	State       ports.UnitState
	Lifecycle   service.State
	Transitions []service.Transition
	Logs        string
	// LogsErr is set when the journal could not be read. It never changes
	// the verdict.
	LogsErr error
	// Errors holds non-fatal problems met along the way, such as a failed
	// daemon-reload or start attempt.
	Errors []error
	Window time.Duration
}

// StatusChecker reports whether the unit runs and tries to start it when
// it does not.
type StatusChecker struct {
	services ports.ServiceManager
	journal  ports.Journal
	logger   ports.Logger
	window   time.Duration
}

// NewStatusChecker creates a StatusChecker that reads window of journal.
func NewStatusChecker(services ports.ServiceManager, journal ports.Journal, logger ports.Logger, window time.Duration) *StatusChecker {
	return &StatusChecker{services: services, journal: journal, logger: logger, window: window}
}

// WithWindow returns a checker reading a different journal window.
func (c *StatusChecker) WithWindow(window time.Duration) *StatusChecker {
	cp := *c
	cp.window = window
	return &cp
}

// Check reloads systemd, inspects unit and, if it is installed but not
// running, starts it once. The journal is read for every installed unit.
func (c *StatusChecker) Check(ctx context.Context, unit string) (report StatusReport) {
	report = StatusReport{Unit: unit, Window: c.window}

	tracker, err := service.NewTracker()
	if err != nil {
		report.Verdict = VerdictFailed
		report.Errors = append(report.Errors, err)
		return report
	}
	defer tracker.Stop()
	defer func() {
		report.Lifecycle = tracker.State()
		report.Transitions = tracker.History()
	}()

	if err := c.services.Reload(ctx); err != nil {
		c.logger.Warn(ctx, "daemon-reload failed", ports.Err(err))
		report.Errors = append(report.Errors, fmt.Errorf("daemon-reload: %w", err))
	}

	state, err := c.services.State(ctx, unit)
	if err != nil {
		report.Verdict = VerdictFailed
		report.Errors = append(report.Errors, err)
		return report
	}
	report.State = state
	tracker.Observe(state)

	switch {
	case !state.Loaded():
		report.Verdict = VerdictNotFound
		return report
	case state.Active():
		report.Verdict = VerdictActive
	default:
		report.Verdict = c.restart(ctx, unit, tracker, &report)
	}

	c.readJournal(ctx, &report)
	return report
}

func (c *StatusChecker) restart(ctx context.Context, unit string, tracker *service.Tracker, report *StatusReport) Verdict {
	c.logger.Info(ctx, "unit not running, starting it", ports.F("unit", unit), ports.F("state", report.State.ActiveState))

	if err := c.services.Start(ctx, unit); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("start: %w", err))
	}

	state, err := c.services.State(ctx, unit)
	if err != nil {
		report.Errors = append(report.Errors, err)
		return VerdictFailed
	}
	report.State = state
	tracker.Observe(state)

	if state.Active() {
		return VerdictRestarted
	}
	return VerdictFailed
}

func (c *StatusChecker) readJournal(ctx context.Context, report *StatusReport) {
	if c.journal == nil {
		return
	}
	logs, err := c.journal.Since(ctx, report.Unit, c.window)
	if err != nil {
		c.logger.Warn(ctx, "could not read journal", ports.F("unit", report.Unit), ports.Err(err))
		report.LogsErr = err
		return
	}
	report.Logs = logs
}

// Status checks the managed unit. A positive window overrides the
// configured journal window.
func (a *App) Status(ctx context.Context, window time.Duration) StatusReport {
	checker := a.status
	if window > 0 {
		checker = checker.WithWindow(window)
	}
	return checker.Check(ctx, a.desc.UnitName())
}
