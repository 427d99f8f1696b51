package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/nodeexpoctor/internal/app"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/config"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

var (
	// Global flags
	cfgFile   string
	verbose   bool
	logFormat string
	backend   string
	sudoMode  string
)

var rootCmd = &cobra.Command{
	Use:   "nodeexpoctor",
	Short: "Install and look after the Prometheus node_exporter",
	Long: `nodeexpoctor installs the Prometheus node_exporter as a systemd service
and keeps it running.

Every step checks the host first and only changes what is missing, so
commands can be re-run safely. Run without arguments on a terminal to
get an interactive menu.`,
	Args:          cobra.NoArgs,
	RunE:          runRoot,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// newApp builds the application for a command. Tests replace it.
var newApp = app.New

// isTerminal reports whether stdin and stdout are a terminal.
var isTerminal = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// Execute runs the root command and prints any error.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printErrorTo(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, YAML or TOML (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "service manager backend (systemctl, dbus)")
	rootCmd.PersistentFlags().StringVar(&sudoMode, "sudo", "", "when to use sudo (auto, always, never)")

	registerFlagCompletions()
}

func runRoot(cmd *cobra.Command, _ []string) error {
	if !isTerminal() {
		return cmd.Help()
	}
	return runMenu(cmd, nil)
}

func globalOptions() app.Options {
	return app.Options{
		ConfigPath: cfgFile,
		Verbose:    verbose,
		LogFormat:  logFormat,
		Backend:    backend,
		Sudo:       sudoMode,
		Build:      app.BuildInfo{Version: version, Commit: commit, Date: buildDate},
	}
}

// withApp builds the application and a printer on the command's output,
// runs fn and releases the application.
func withApp(cmd *cobra.Command, fn func(context.Context, *app.App, *app.Printer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, globalOptions(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, newPrinter(cmd.OutOrStdout()))
}

func newPrinter(out io.Writer) *app.Printer {
	return app.NewPrinter(out).WithColor(!color.NoColor).WithVerbose(verbose)
}

// exitCode maps an Execute error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, app.ErrInterrupted), errors.Is(err, context.Canceled):
		return exitInterrupted
	}
	return exitFailure
}

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error) string {
	var list *config.ErrorList
	if errors.As(err, &list) {
		if verbose {
			return list.Format()
		}
		return list.Error()
	}

	if userErr := config.GetUserError(err); userErr != nil {
		msg := userErr.Message
		if userErr.Context != "" {
			msg += fmt.Sprintf(" (at %s)", userErr.Context)
		}
		if userErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
		}
		if verbose && userErr.Underlying != nil {
			msg += fmt.Sprintf("\n\nTechnical details: %v", userErr.Underlying)
		}
		return msg
	}

	var stepErr *step.StepError
	if errors.As(err, &stepErr) {
		if verbose {
			return stepErr.Format()
		}
		msg := stepErr.Error()
		if stepErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", stepErr.Suggestion)
		}
		return msg
	}
	return err.Error()
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}

// registerFlagCompletions sets up custom completions for global flags.
func registerFlagCompletions() {
	_ = rootCmd.RegisterFlagCompletionFunc("config", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml", "toml"}, cobra.ShellCompDirectiveFilterFileExt
	})

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.LogFormatText, config.LogFormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	_ = rootCmd.RegisterFlagCompletionFunc("backend", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{
			config.BackendSystemctl + "\tCall systemctl",
			config.BackendDBus + "\tTalk to systemd over D-Bus",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	_ = rootCmd.RegisterFlagCompletionFunc("sudo", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{
			config.SudoAuto + "\tUse sudo unless running as root",
			config.SudoAlways + "\tAlways prefix privileged commands with sudo",
			config.SudoNever + "\tNever use sudo",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}
