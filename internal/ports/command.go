// Package ports defines interfaces for the host-facing dependencies of the
// provisioning core: command execution, the filesystem, the init system,
// the journal and logging.
package ports

import (
	"context"
	"strings"
)

// CommandResult represents the result of executing an external command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success returns true if the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Output returns stdout followed by stderr, trimmed.
// Some tools print their version banner on stderr.
func (r CommandResult) Output() string {
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}

// CommandCall records a command invocation.
type CommandCall struct {
	Command string
	Args    []string
}

// String renders the call as a shell-like command line.
func (c CommandCall) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// CommandRunner executes external commands and captures their output.
// A non-zero exit status is reported through CommandResult.ExitCode,
// not as an error; errors are reserved for commands that could not be run.
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
}

// InteractiveRunner executes a command attached to the caller's terminal.
// Used for editors, where output must not be captured.
type InteractiveRunner interface {
	RunInteractive(ctx context.Context, command string, args ...string) error
}
