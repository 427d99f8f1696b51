package step

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// Substrings (lower-case) that identify a failure class in command output.
var (
	privilegePatterns = []string{
		"permission denied",
		"operation not permitted",
		"must be run as root",
		"only root",
		"a password is required",
		"a terminal is required",
		"is not in the sudoers",
		"access denied",
		"interactive authentication required",
		"cannot lock /etc/passwd",
		"cannot open /etc/shadow",
	}
	alreadyExistsPatterns = []string{
		"already exists",
		"already in use",
	}
	notFoundPatterns = []string{
		"no such file or directory",
		"does not exist",
		"not loaded",
		"could not be found",
		"not found",
	}
)

// ClassifyMessage maps free-form command or bus error output onto a Kind.
// Privilege takes precedence: "permission denied" outranks any secondary message.
func ClassifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, privilegePatterns):
		return KindPrivilege
	case containsAny(lower, alreadyExistsPatterns):
		return KindAlreadyExists
	case containsAny(lower, notFoundPatterns):
		return KindNotFound
	}
	return KindProcess
}

// Classify maps a failed command result onto a Kind.
func Classify(result ports.CommandResult) Kind {
	if result.Success() {
		return KindNone
	}
	// 126: found but not executable.
	if result.ExitCode == 126 {
		return KindPrivilege
	}
	return ClassifyMessage(result.Stderr + "\n" + result.Stdout)
}

// CommandError builds a StepError from a failed command result.
func CommandError(command string, args []string, result ports.CommandResult) *StepError {
	call := ports.CommandCall{Command: command, Args: args}
	kind := Classify(result)
	e := &StepError{
		Code:     ErrCodeCommandFailed,
		Kind:     kind,
		Message:  "command failed",
		Command:  call.String(),
		ExitCode: result.ExitCode,
		Stderr:   strings.TrimSpace(result.Stderr),
	}
	if kind == KindPrivilege {
		e.Suggestion = "Run as root or allow sudo for this user (see --sudo)."
	}
	return e
}

// RunError builds a StepError for a command that could not be executed at all.
func RunError(command string, args []string, err error) *StepError {
	call := ports.CommandCall{Command: command, Args: args}
	e := &StepError{
		Code:       ErrCodeCommandFailed,
		Kind:       KindProcess,
		Message:    "command could not be run",
		Command:    call.String(),
		ExitCode:   -1,
		Underlying: err,
	}
	switch {
	case errors.Is(err, context.Canceled):
		e.Kind = KindInterrupted
		e.Code = ErrCodeInterrupted
		e.Message = "command interrupted"
	case errors.Is(err, context.DeadlineExceeded):
		e.Message = "command timed out"
		e.Suggestion = "Increase the matching timeout in the configuration file."
	case IsCommandNotFound(err):
		e.Code = ErrCodeCommandMissing
		e.Kind = KindNotFound
		e.Message = "command not found"
		e.Suggestion = "Install " + command + " or add it to PATH."
	case errors.Is(err, os.ErrPermission):
		e.Kind = KindPrivilege
	}
	return e
}

// IsCommandNotFound reports whether an error indicates a missing executable.
func IsCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return true
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return true
	}
	return false
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
