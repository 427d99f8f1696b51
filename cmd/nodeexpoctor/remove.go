package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/nodeexpoctor/internal/app"
)

var removeCmd = &cobra.Command{
	Use:     "remove",
	Aliases: []string{"uninstall"},
	Short:   "Stop node_exporter and remove everything install created",
	Long: `Remove stops and disables the service, then deletes the unit file, the
binary, the config and data directories, the service account and any
downloaded artifacts. Every step runs even if an earlier one fails, and
anything already gone is reported as not found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dryRun := removeDryRun
		return withApp(cmd, func(ctx context.Context, a *app.App, p *app.Printer) error {
			return runRemove(ctx, a, p, dryRun)
		})
	},
}

var removeDryRun bool

func init() {
	rootCmd.AddCommand(removeCmd)

	removeCmd.Flags().BoolVar(&removeDryRun, "dry-run", false, "check every step and show what would be removed")
}

func runRemove(ctx context.Context, a *app.App, p *app.Printer, dryRun bool) error {
	result, err := a.Remove(ctx, dryRun)
	if err != nil {
		return err
	}
	p.PrintResult(app.OperationRemove, result)
	return app.RunError(result)
}
