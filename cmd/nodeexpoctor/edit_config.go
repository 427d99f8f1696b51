package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/nodeexpoctor/internal/app"
)

var editConfigCmd = &cobra.Command{
	Use:   "edit-config",
	Short: "Edit the node_exporter web config",
	Long: `Edit-config opens the exporter's web config file in an editor as root.

The editor is taken from the configuration file, then $VISUAL, then
$EDITOR, falling back to nano. The file is checked after the editor
exits. Run status afterwards to restart the exporter with the new file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, runEditConfig)
	},
}

// errConfigInvalid is returned when the saved web config does not parse.
var errConfigInvalid = errors.New("web config is invalid")

func init() {
	rootCmd.AddCommand(editConfigCmd)
}

func runEditConfig(ctx context.Context, a *app.App, p *app.Printer) error {
	report, err := a.EditConfig(ctx)
	if err != nil {
		return err
	}
	p.PrintEdit(report)
	if report.Invalid != nil {
		return errConfigInvalid
	}
	return nil
}
