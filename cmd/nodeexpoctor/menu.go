package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/nodeexpoctor/internal/app"
	"github.com/felixgeelhaar/nodeexpoctor/internal/tui"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Choose an action from an interactive menu",
	Long: `Menu shows a numbered list of actions and runs the one you pick:

  1) check version   2) install   3) edit config
  4) remove          5) status    6) exit

It keeps showing the menu, with the outcome of the last action, until
you choose exit. This is the default when nodeexpoctor runs on a
terminal without arguments.`,
	Args: cobra.NoArgs,
	RunE: runMenu,
}

// showMenu displays the menu once. Tests replace it.
var showMenu = tui.RunMenu

func init() {
	rootCmd.AddCommand(menuCmd)
}

func runMenu(cmd *cobra.Command, _ []string) error {
	in, out := cmd.InOrStdin(), cmd.OutOrStdout()
	return withApp(cmd, func(ctx context.Context, a *app.App, p *app.Printer) error {
		return menuLoop(ctx, a, p, in, out)
	})
}

// menuLoop runs chosen actions until exit. Action failures are printed
// and shown in the menu; only an interrupt ends the loop early.
func menuLoop(ctx context.Context, a *app.App, p *app.Printer, in io.Reader, out io.Writer) error {
	model := tui.NewMenuModel()
	for {
		action, err := showMenu(ctx, in, out, model)
		if err != nil {
			return err
		}
		if action == tui.ActionExit {
			return nil
		}

		err = runAction(ctx, a, p, action)
		if ctx.Err() != nil {
			return app.ErrInterrupted
		}
		if err != nil && !isReportedFailure(err) {
			p.PrintError(err)
		}
		model = tui.NewMenuModel().WithMessage(outcome(action, err), err != nil)
	}
}

func runAction(ctx context.Context, a *app.App, p *app.Printer, action tui.Action) error {
	switch action {
	case tui.ActionVersion:
		return showVersion(ctx, a, p)
	case tui.ActionInstall:
		return runInstall(ctx, a, p, app.InstallOptions{})
	case tui.ActionEditConfig:
		return runEditConfig(ctx, a, p)
	case tui.ActionRemove:
		return runRemove(ctx, a, p, false)
	case tui.ActionStatus:
		return runStatus(ctx, a, p, 0)
	}
	return fmt.Errorf("unknown menu action %q", action)
}

// isReportedFailure is true for errors whose details the printed report
// already shows.
func isReportedFailure(err error) bool {
	return errors.Is(err, app.ErrRunFailed) ||
		errors.Is(err, errNotRunning) ||
		errors.Is(err, errConfigInvalid)
}

func outcome(action tui.Action, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: %v", action, err)
	}
	return fmt.Sprintf("%s: done", action)
}
