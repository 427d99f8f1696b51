package systemd

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// Journalctl implements ports.Journal with the journalctl program. It runs
// privileged because unprivileged users only see their own messages.
type Journalctl struct {
	runner  ports.CommandRunner
	timeout time.Duration
}

// NewJournalctl creates a journal reader.
func NewJournalctl(privileged ports.CommandRunner, timeout time.Duration) *Journalctl {
	return &Journalctl{runner: privileged, timeout: timeout}
}

// Since returns the unit's log lines from the last window, rounded up to
// whole minutes.
func (j *Journalctl) Since(ctx context.Context, unit string, window time.Duration) (string, error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	args := []string{"-u", unit, "--since", SinceArg(window), "--no-pager"}
	result, err := j.runner.Run(ctx, "journalctl", args...)
	if err != nil {
		return "", step.RunError("journalctl", args, err)
	}
	if !result.Success() {
		return "", step.CommandError("journalctl", args, result)
	}
	return result.Stdout, nil
}

// SinceArg formats a look-back window for journalctl --since.
func SinceArg(window time.Duration) string {
	minutes := int(math.Ceil(window.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d minutes ago", minutes)
}

var _ ports.Journal = (*Journalctl)(nil)
