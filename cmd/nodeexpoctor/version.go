package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/nodeexpoctor/internal/app"
)

// Version information set by build flags.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information for nodeexpoctor and node_exporter",
	Long: `Version shows the nodeexpoctor build, the pinned node_exporter release,
the installed node_exporter version and whether the host's architecture
matches the release that would be downloaded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, showVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func showVersion(ctx context.Context, a *app.App, p *app.Printer) error {
	p.PrintVersion(a.Version(ctx))
	return nil
}
