package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/nodeexpoctor/internal/app"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install node_exporter and start it as a systemd service",
	Long: `Install creates the service account and directories, downloads and
installs the pinned node_exporter release, writes the web config and the
systemd unit, and enables and starts the service.

Steps that are already in place are left alone, so install can be re-run
to repair a host or to upgrade after changing the pinned version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := app.InstallOptions{DryRun: installDryRun, RemoveOnFailure: installRemoveOnFailure}
		return withApp(cmd, func(ctx context.Context, a *app.App, p *app.Printer) error {
			return runInstall(ctx, a, p, opts)
		})
	},
}

var (
	installDryRun          bool
	installRemoveOnFailure bool
)

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "check every step and show what would change")
	installCmd.Flags().BoolVar(&installRemoveOnFailure, "remove-on-failure", false, "remove what was installed if the install fails")
}

func runInstall(ctx context.Context, a *app.App, p *app.Printer, opts app.InstallOptions) error {
	report, err := a.Install(ctx, opts)
	if err != nil {
		return err
	}
	p.PrintInstall(report)
	return app.RunError(report.Result)
}
