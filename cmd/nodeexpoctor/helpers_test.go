package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/nodeexpoctor/internal/app"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/config"
	"github.com/felixgeelhaar/nodeexpoctor/internal/testutil/fakehost"
)

const testWorkDir = "/home/tester/.cache/nodeexpoctor"

// useFakeHost makes commands run against a simulated host for the rest of
// the test.
func useFakeHost(t *testing.T) *fakehost.Host {
	t.Helper()

	host := fakehost.New(testWorkDir)
	prevApp, prevTTY := newApp, isTerminal
	t.Cleanup(func() {
		newApp, isTerminal = prevApp, prevTTY
	})

	isTerminal = func() bool { return false }
	newApp = func(_ context.Context, opts app.Options, logOut io.Writer) (*app.App, error) {
		cfg := config.Default()
		cfg.Paths.WorkDir = testWorkDir
		if err := app.ApplyOptions(cfg, opts); err != nil {
			return nil, err
		}
		logger, err := app.NewLogger(cfg, opts.Verbose, logOut)
		if err != nil {
			return nil, err
		}
		return app.NewWithHost(cfg, app.Host{
			Runner: host,
			FS:     host,
			Euid:   1000,
			Getenv: func(string) string { return "" },
		}, logger, opts.Build)
	}
	return host
}

// executeCommand runs the CLI with args and returns stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeCommandContext(t, context.Background(), args...)
}

func executeCommandContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(bytes.NewReader(nil))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute(ctx)
	return stdout.String(), stderr.String(), err
}

func resetFlags() {
	cfgFile, verbose, logFormat, backend, sudoMode = "", false, "", "", ""
	installDryRun, installRemoveOnFailure = false, false
	removeDryRun = false
	statusSince = 0
}

func requireExit(t *testing.T, want int, err error) {
	t.Helper()
	require.Equal(t, want, exitCode(err), "error: %v", err)
}
