package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/nodeexpoctor/internal/app"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/config"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/testutil/fakehost"
)

func TestConfigEditor_Editor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		configured string
		env        map[string]string
		want       []string
	}{
		{name: "default", want: []string{config.DefaultEditor}},
		{name: "configured wins", configured: "vim", env: map[string]string{"VISUAL": "emacs"}, want: []string{"vim"}},
		{name: "visual before editor", env: map[string]string{"VISUAL": "emacs -nw", "EDITOR": "vi"}, want: []string{"emacs", "-nw"}},
		{name: "editor", env: map[string]string{"EDITOR": "vi"}, want: []string{"vi"}},
		{name: "unsafe value skipped", env: map[string]string{"VISUAL": "vi; rm -rf /", "EDITOR": "micro"}, want: []string{"micro"}},
		{name: "all unsafe", configured: "$(evil)", env: map[string]string{"EDITOR": "a|b"}, want: []string{config.DefaultEditor}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := fakehost.New(workDir)
			getenv := func(k string) string { return tt.env[k] }
			e := app.NewConfigEditor(h, h, h, getenv, tt.configured, time.Minute)
			assert.Equal(t, tt.want, e.Editor())
		})
	}
}

func TestApp_EditConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.env["EDITOR"] = "vi"
	f.install(t)
	path := f.app.Descriptor().ConfigFile

	var edited string
	f.host.Editor = func(p string, h *fakehost.Host) {
		edited = p
		h.SetFile(p, "basic_auth_users:\n  prometheus: $2y$10$abc\n", "node_exporter", 0o640)
	}

	report, err := f.app.EditConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, path, edited)
	assert.Equal(t, []string{"vi"}, report.Editor)
	assert.NoError(t, report.Invalid)

	calls := f.host.InteractiveCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sudo", calls[0].Command)
	assert.Equal(t, []string{"--", "vi", path}, calls[0].Args)
}

func TestApp_EditConfigInvalidResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.install(t)
	f.host.Editor = func(p string, h *fakehost.Host) {
		h.SetFile(p, "basic_auth_user:\n  - oops\n", "node_exporter", 0o640)
	}

	report, err := f.app.EditConfig(context.Background())
	require.NoError(t, err)

	require.Error(t, report.Invalid)
	assert.Contains(t, f.logs.String(), "web config does not parse")
}

func TestApp_EditConfigBeforeInstall(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.app.EditConfig(context.Background())

	require.Error(t, err)
	assert.Equal(t, step.KindNotFound, step.KindOf(err))
	assert.Empty(t, f.host.InteractiveCalls())
}

func TestApp_EditConfigSudoDenied(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.install(t)
	f.host.DenySudo = true

	_, err := f.app.EditConfig(context.Background())
	require.Error(t, err)
}
