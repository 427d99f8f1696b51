// Package mocks provides test doubles for the ports.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// CommandRunner is a thread-safe test double for ports.CommandRunner and
// ports.InteractiveRunner. Commands are matched on the full argument list.
type CommandRunner struct {
	mu          sync.RWMutex
	results     map[string]ports.CommandResult
	errors      map[string]error
	calls       []ports.CommandCall
	interactive []ports.CommandCall
}

// NewCommandRunner creates a new CommandRunner mock.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		results: make(map[string]ports.CommandResult),
		errors:  make(map[string]error),
		calls:   make([]ports.CommandCall, 0),
	}
}

// AddResult registers an expected command and its result.
func (m *CommandRunner) AddResult(command string, args []string, result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[buildKey(command, args)] = result
}

// AddError registers an expected command that should return an error.
// For interactive commands the error is returned from RunInteractive.
func (m *CommandRunner) AddError(command string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[buildKey(command, args)] = err
}

// Run executes a mock command.
func (m *CommandRunner) Run(_ context.Context, command string, args ...string) (ports.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ports.CommandCall{Command: command, Args: args})
	key := buildKey(command, args)

	if err, ok := m.errors[key]; ok {
		return ports.CommandResult{}, err
	}
	if result, ok := m.results[key]; ok {
		return result, nil
	}
	return ports.CommandResult{}, fmt.Errorf("no mock result for command: %s %v", command, args)
}

// RunInteractive records an interactive command. It succeeds unless an
// error was registered for it.
func (m *CommandRunner) RunInteractive(_ context.Context, command string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.interactive = append(m.interactive, ports.CommandCall{Command: command, Args: args})
	return m.errors[buildKey(command, args)]
}

// Calls returns all recorded command invocations.
func (m *CommandRunner) Calls() []ports.CommandCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]ports.CommandCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// InteractiveCalls returns all recorded interactive invocations.
func (m *CommandRunner) InteractiveCalls() []ports.CommandCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]ports.CommandCall, len(m.interactive))
	copy(calls, m.interactive)
	return calls
}

// Called reports whether the exact command line was run.
func (m *CommandRunner) Called(command string, args ...string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := buildKey(command, args)
	for _, c := range m.calls {
		if buildKey(c.Command, c.Args) == want {
			return true
		}
	}
	return false
}

// Reset clears all registered results, errors, and recorded calls.
func (m *CommandRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string]ports.CommandResult)
	m.errors = make(map[string]error)
	m.calls = make([]ports.CommandCall, 0)
	m.interactive = nil
}

// buildKey creates a unique key for a command and its arguments.
func buildKey(command string, args []string) string {
	return command + ":" + strings.Join(args, ":")
}

var (
	_ ports.CommandRunner     = (*CommandRunner)(nil)
	_ ports.InteractiveRunner = (*CommandRunner)(nil)
)
