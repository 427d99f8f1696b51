package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/nodeexpoctor/internal/app"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what install would change",
	Long: `Plan checks every install step against the host and shows what would
change, including a diff of the systemd unit file. Nothing is modified.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, runPlan)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(ctx context.Context, a *app.App, p *app.Printer) error {
	plan, err := a.Plan(ctx)
	if err != nil {
		return err
	}
	p.PrintPlan(plan, a.Descriptor().Version)
	return nil
}
