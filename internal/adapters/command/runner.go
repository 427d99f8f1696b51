// Package command runs external programs for the provisioning steps.
package command

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// RealRunner executes commands on the local host.
// Commands run with LC_ALL=C so their messages can be classified.
type RealRunner struct {
	logger ports.Logger
	env    []string
}

// NewRealRunner creates a new RealRunner.
func NewRealRunner() *RealRunner {
	return &RealRunner{env: append(os.Environ(), "LC_ALL=C")}
}

// WithLogger returns a runner that logs each command at debug level.
func (r *RealRunner) WithLogger(logger ports.Logger) *RealRunner {
	return &RealRunner{logger: logger, env: r.env}
}

// Run executes a command and returns the result. A non-zero exit status
// is returned in the result; the error is reserved for commands that could
// not be started or were cancelled.
func (r *RealRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = r.env

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := ports.CommandResult{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			err = nil
		} else if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
	}

	r.debug(ctx, command, args, result, err, time.Since(start))
	return result, err
}

// RunInteractive executes a command attached to the caller's terminal.
func (r *RealRunner) RunInteractive(ctx context.Context, command string, args ...string) error {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if r.logger != nil {
		r.logger.Debug(ctx, "exec interactive", ports.F("cmd", ports.CommandCall{Command: command, Args: args}.String()))
	}
	return cmd.Run()
}

func (r *RealRunner) debug(ctx context.Context, command string, args []string, result ports.CommandResult, err error, d time.Duration) {
	if r.logger == nil {
		return
	}
	fields := []ports.Field{
		ports.F("cmd", ports.CommandCall{Command: command, Args: args}.String()),
		ports.F("exit", result.ExitCode),
		ports.F("duration", d.Round(time.Millisecond).String()),
	}
	if err != nil {
		fields = append(fields, ports.Err(err))
	}
	if stderr := strings.TrimSpace(result.Stderr); stderr != "" && !result.Success() {
		fields = append(fields, ports.F("stderr", stderr))
	}
	r.logger.Debug(ctx, "exec", fields...)
}

var (
	_ ports.CommandRunner     = (*RealRunner)(nil)
	_ ports.InteractiveRunner = (*RealRunner)(nil)
)
