package command

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// SudoMode controls how privileged commands are elevated.
type SudoMode string

// Sudo modes.
const (
	SudoAuto   SudoMode = "auto"
	SudoAlways SudoMode = "always"
	SudoNever  SudoMode = "never"
)

// ParseSudoMode validates a mode name.
func ParseSudoMode(s string) (SudoMode, error) {
	switch m := SudoMode(s); m {
	case SudoAuto, SudoAlways, SudoNever:
		return m, nil
	case "":
		return SudoAuto, nil
	}
	return "", fmt.Errorf("unknown sudo mode %q (want auto, always or never)", s)
}

// interactiveCommandRunner is a runner that can also attach to the terminal.
type interactiveCommandRunner interface {
	ports.CommandRunner
	ports.InteractiveRunner
}

// PrivilegedRunner runs commands as root, prefixing them with sudo unless
// the process already runs as root (SudoAuto) or elevation is disabled
// (SudoNever).
type PrivilegedRunner struct {
	inner   interactiveCommandRunner
	useSudo bool
}

// NewPrivilegedRunner wraps inner. euid is the effective user ID of the
// current process (os.Geteuid()).
func NewPrivilegedRunner(inner interactiveCommandRunner, mode SudoMode, euid int) *PrivilegedRunner {
	useSudo := false
	switch mode {
	case SudoAlways:
		useSudo = true
	case SudoAuto:
		useSudo = euid != 0
	case SudoNever:
	}
	return &PrivilegedRunner{inner: inner, useSudo: useSudo}
}

// UsesSudo reports whether commands are prefixed with sudo.
func (p *PrivilegedRunner) UsesSudo() bool {
	return p.useSudo
}

// Run executes the command with elevated privileges.
func (p *PrivilegedRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	name, argv := p.elevate(command, args)
	return p.inner.Run(ctx, name, argv...)
}

// RunInteractive executes the command with elevated privileges on the terminal.
func (p *PrivilegedRunner) RunInteractive(ctx context.Context, command string, args ...string) error {
	name, argv := p.elevate(command, args)
	return p.inner.RunInteractive(ctx, name, argv...)
}

func (p *PrivilegedRunner) elevate(command string, args []string) (string, []string) {
	if !p.useSudo {
		return command, args
	}
	argv := make([]string, 0, len(args)+2)
	argv = append(argv, "--", command)
	argv = append(argv, args...)
	return "sudo", argv
}

var (
	_ ports.CommandRunner     = (*PrivilegedRunner)(nil)
	_ ports.InteractiveRunner = (*PrivilegedRunner)(nil)
)
