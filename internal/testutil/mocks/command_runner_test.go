package mocks

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRunner_AddResult(t *testing.T) {
	t.Parallel()

	runner := NewCommandRunner()
	runner.AddResult("id", []string{"-u", "node_exporter"}, ports.CommandResult{Stdout: "998\n"})

	result, err := runner.Run(context.Background(), "id", "-u", "node_exporter")
	require.NoError(t, err)
	assert.Equal(t, "998\n", result.Stdout)
	assert.True(t, runner.Called("id", "-u", "node_exporter"))
	assert.False(t, runner.Called("id", "-u", "root"))
}

func TestCommandRunner_Unregistered(t *testing.T) {
	t.Parallel()

	_, err := NewCommandRunner().Run(context.Background(), "useradd", "x")
	assert.Error(t, err)
}

func TestCommandRunner_AddError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	runner := NewCommandRunner()
	runner.AddError("wget", []string{"-O", "x"}, boom)
	runner.AddError("nano", []string{"/etc/x.yml"}, boom)

	_, err := runner.Run(context.Background(), "wget", "-O", "x")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, runner.RunInteractive(context.Background(), "nano", "/etc/x.yml"), boom)
	assert.NoError(t, runner.RunInteractive(context.Background(), "vim", "/etc/x.yml"))
	assert.Len(t, runner.InteractiveCalls(), 2)
}

func TestCommandRunner_Reset(t *testing.T) {
	t.Parallel()

	runner := NewCommandRunner()
	runner.AddResult("uname", []string{"-m"}, ports.CommandResult{Stdout: "x86_64"})
	_, _ = runner.Run(context.Background(), "uname", "-m")
	runner.Reset()

	assert.Empty(t, runner.Calls())
	_, err := runner.Run(context.Background(), "uname", "-m")
	assert.Error(t, err)
}
