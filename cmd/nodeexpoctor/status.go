package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/nodeexpoctor/internal/app"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check node_exporter and start it if it is not running",
	Long: `Status reloads systemd, checks whether the node_exporter unit is
running and starts it once if it is not. Recent journal output for the
unit is shown to help diagnose failures.

The exit status is non-zero when the service is not installed or could
not be started.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		window := statusSince
		return withApp(cmd, func(ctx context.Context, a *app.App, p *app.Printer) error {
			return runStatus(ctx, a, p, window)
		})
	},
}

var statusSince time.Duration

// errNotRunning is returned when status ends without a running service.
var errNotRunning = errors.New("node_exporter is not running")

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().DurationVar(&statusSince, "since", 0, "journal window to show (default: log_window from the config, 10m)")
}

func runStatus(ctx context.Context, a *app.App, p *app.Printer, window time.Duration) error {
	report := a.Status(ctx, window)
	p.PrintStatus(report)

	if ctx.Err() != nil {
		return app.ErrInterrupted
	}
	switch report.Verdict {
	case app.VerdictActive, app.VerdictRestarted:
		return nil
	}
	return errNotRunning
}
