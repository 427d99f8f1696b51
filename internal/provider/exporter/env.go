// Package exporter builds the install and removal steps for node_exporter.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
	"github.com/felixgeelhaar/nodeexpoctor/internal/provider/versionutil"
)

// Default bounds for external calls.
const (
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultServiceTimeout  = 60 * time.Second
	DefaultCommandTimeout  = 30 * time.Second
)

// Timeouts bounds every external call a step makes.
type Timeouts struct {
	Download time.Duration
	Service  time.Duration
	Command  time.Duration
}

// DefaultTimeouts returns the default bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Download: DefaultDownloadTimeout,
		Service:  DefaultServiceTimeout,
		Command:  DefaultCommandTimeout,
	}
}

// Env is what the steps need from the host.
type Env struct {
	// Runner runs unprivileged queries and work-directory commands.
	Runner ports.CommandRunner
	// Privileged runs commands that change system state.
	Privileged ports.CommandRunner
	// FS reads system files and writes the work directory.
	FS ports.FileSystem
	// Services drives the init system.
	Services ports.ServiceManager
	Timeouts Timeouts
	// Retries is passed to wget --tries.
	Retries int
}

// run executes a command bounded by timeout and converts any failure into a
// *step.StepError.
func (e *Env) run(ctx context.Context, runner ports.CommandRunner, timeout time.Duration, command string, args ...string) (ports.CommandResult, error) {
	result, err := e.probe(ctx, runner, timeout, command, args...)
	if err != nil {
		return result, err
	}
	if !result.Success() {
		return result, step.CommandError(command, args, result)
	}
	return result, nil
}

// probe executes a command bounded by timeout. A non-zero exit is returned
// in the result for the caller to interpret.
func (e *Env) probe(ctx context.Context, runner ports.CommandRunner, timeout time.Duration, command string, args ...string) (ports.CommandResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := runner.Run(ctx, command, args...)
	if err != nil {
		return result, step.RunError(command, args, err)
	}
	return result, nil
}

// InstalledVersion runs "<binary> --version" and returns the reported
// version, or "" when the binary is absent or prints no version.
func (e *Env) InstalledVersion(ctx context.Context, binary string) (string, error) {
	if !e.FS.Exists(binary) {
		return "", nil
	}
	result, err := e.probe(ctx, e.Runner, e.Timeouts.Command, binary, "--version")
	if err != nil {
		if step.KindOf(err) == step.KindNotFound {
			return "", nil
		}
		return "", err
	}
	if !result.Success() {
		return "", nil
	}
	return versionutil.ParseVersion(result.Output()), nil
}

// stage writes data into workDir and installs it at dest with the given
// owner and mode through the privileged runner.
func (e *Env) stage(ctx context.Context, workDir string, data []byte, dest, owner, group, mode string) error {
	if err := e.FS.MkdirAll(workDir, 0o755); err != nil {
		return fsError("create work directory", workDir, err)
	}
	tmp := filepath.Join(workDir, "."+filepath.Base(dest)+".staged")
	if err := e.FS.WriteFile(tmp, data, 0o600); err != nil {
		return fsError("write staging file", tmp, err)
	}
	defer func() { _ = e.FS.Remove(tmp) }()

	_, err := e.run(ctx, e.Privileged, e.Timeouts.Command,
		"install", "-o", owner, "-g", group, "-m", mode, tmp, dest)
	return err
}

// fsError converts a file system error into a *step.StepError.
func fsError(action, path string, err error) *step.StepError {
	kind := step.KindProcess
	switch {
	case errors.Is(err, fs.ErrPermission):
		kind = step.KindPrivilege
	case errors.Is(err, fs.ErrNotExist):
		kind = step.KindNotFound
	}
	return &step.StepError{
		Code:       step.ErrCodeApplyFailed,
		Kind:       kind,
		Message:    fmt.Sprintf("failed to %s %s", action, path),
		Underlying: err,
	}
}
