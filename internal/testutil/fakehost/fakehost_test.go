package fakehost

import (
	"context"
	"io/fs"
	"testing"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHost_Accounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := New("/var/tmp/work")

	res, err := h.Run(ctx, "id", "-u", "node_exporter")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)

	res, err = h.Run(ctx, "useradd", "--system", "node_exporter")
	require.NoError(t, err)
	assert.Equal(t, step.KindPrivilege, step.Classify(res))

	res, err = h.Run(ctx, "sudo", "--", "groupadd", "--system", "node_exporter")
	require.NoError(t, err)
	require.True(t, res.Success())
	res, err = h.Run(ctx, "sudo", "--", "useradd", "--system", "-g", "node_exporter", "node_exporter")
	require.NoError(t, err)
	require.True(t, res.Success())
	assert.True(t, h.HasUser("node_exporter"))

	res, err = h.Run(ctx, "sudo", "--", "useradd", "--system", "-g", "node_exporter", "node_exporter")
	require.NoError(t, err)
	assert.Equal(t, 9, res.ExitCode)

	res, err = h.Run(ctx, "sudo", "--", "userdel", "node_exporter")
	require.NoError(t, err)
	require.True(t, res.Success())
	res, err = h.Run(ctx, "sudo", "--", "userdel", "node_exporter")
	require.NoError(t, err)
	assert.Equal(t, 6, res.ExitCode)

	assert.Equal(t, 2, h.Ran("useradd", "--system"))
}

func TestHost_DenySudo(t *testing.T) {
	t.Parallel()

	h := New("/var/tmp/work")
	h.DenySudo = true

	res, err := h.Run(context.Background(), "sudo", "--", "userdel", "x")
	require.NoError(t, err)
	assert.Equal(t, step.KindPrivilege, step.Classify(res))
}

func TestHost_DownloadAndExtract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := New("/var/tmp/work")
	require.NoError(t, h.MkdirAll("/var/tmp/work", 0o755))

	archive := "/var/tmp/work/node_exporter-1.8.1.linux-amd64.tar.gz"
	res, err := h.Run(ctx, "wget", "--quiet", "-O", archive, "https://example.com/x.tar.gz")
	require.NoError(t, err)
	require.True(t, res.Success())

	res, err = h.Run(ctx, "tar", "-xzf", archive, "-C", "/var/tmp/work")
	require.NoError(t, err)
	require.True(t, res.Success(), res.Stderr)

	bin := "/var/tmp/work/node_exporter-1.8.1.linux-amd64/node_exporter"
	res, err = h.Run(ctx, bin, "--version")
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "node_exporter, version 1.8.1 ")

	_, err = h.Run(ctx, "/usr/local/bin/node_exporter", "--version")
	assert.True(t, step.IsCommandNotFound(err))
}

func TestHost_FailDownloadLeavesPartial(t *testing.T) {
	t.Parallel()

	h := New("/var/tmp/work")
	h.FailDownload = true
	require.NoError(t, h.MkdirAll("/var/tmp/work", 0o755))

	res, err := h.Run(context.Background(), "wget", "-O", "/var/tmp/work/a.part", "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, 4, res.ExitCode)
	assert.True(t, h.Exists("/var/tmp/work/a.part"))
}

func TestHost_Systemctl(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := New("/var/tmp/work")
	h.SetFile("/usr/local/bin/node_exporter", "#!fake node_exporter version 1.8.1", "root", 0o755)

	res, _ := h.Run(ctx, "systemctl", "show", "node_exporter.service")
	assert.Contains(t, res.Stdout, "LoadState=not-found")

	res, _ = h.Run(ctx, "sudo", "--", "systemctl", "start", "node_exporter.service")
	assert.Equal(t, 5, res.ExitCode)

	h.SetFile(UnitDir+"/node_exporter.service", "[Service]\nExecStart=/usr/local/bin/node_exporter --web.listen-address=:9100\n", "root", 0o644)
	res, _ = h.Run(ctx, "systemctl", "start", "node_exporter.service")
	assert.Equal(t, step.KindPrivilege, step.Classify(res))

	for _, verb := range []string{"daemon-reload", "enable", "start"} {
		args := []string{"--", "systemctl", verb}
		if verb != "daemon-reload" {
			args = append(args, "node_exporter.service")
		}
		res, _ = h.Run(ctx, "sudo", args...)
		require.True(t, res.Success(), verb)
	}
	assert.True(t, h.UnitActive("node_exporter.service"))
	assert.True(t, h.UnitEnabled("node_exporter.service"))

	res, _ = h.Run(ctx, "systemctl", "show", "node_exporter.service")
	assert.Contains(t, res.Stdout, "ActiveState=active")
	assert.Contains(t, res.Stdout, "UnitFileState=enabled")

	h.Crash("node_exporter.service")
	res, _ = h.Run(ctx, "systemctl", "show", "node_exporter.service")
	assert.Contains(t, res.Stdout, "ActiveState=failed")

	res, _ = h.Run(ctx, "journalctl", "-u", "node_exporter.service", "--since", "10 minutes ago", "--no-pager")
	assert.Contains(t, res.Stdout, "Started Node Exporter.")
	assert.Contains(t, res.Stdout, "status=9/KILL")
}

func TestHost_FileSystemPermissions(t *testing.T) {
	t.Parallel()

	h := New("/var/tmp/work")
	err := h.WriteFile("/etc/node_exporter.yml", []byte("x"), 0o644)
	assert.ErrorIs(t, err, fs.ErrPermission)

	require.NoError(t, h.MkdirAll("/var/tmp/work/sub", 0o755))
	require.NoError(t, h.WriteFile("/var/tmp/work/sub/a", []byte("x"), 0o600))
	assert.Equal(t, Invoker+":"+Invoker, h.Owner("/var/tmp/work/sub/a"))

	_, err = h.ReadFile("/etc/missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	data, err := h.ReadFile("/etc/os-release")
	require.NoError(t, err)
	assert.Contains(t, string(data), "ID=debian")
}

func TestHost_Cat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := New("/var/tmp/work")
	h.SetFile("/etc/node_exporter/web.yml", "tls_server_config: {}\n", "node_exporter", 0o640)

	tests := []struct {
		name     string
		command  string
		args     []string
		exitCode int
		stdout   string
	}{
		{name: "world readable", command: "cat", args: []string{"--", "/etc/os-release"}, stdout: "ID=debian"},
		{name: "private needs root", command: "cat", args: []string{"--", "/etc/node_exporter/web.yml"}, exitCode: 1},
		{name: "private through sudo", command: "sudo", args: []string{"--", "cat", "--", "/etc/node_exporter/web.yml"}, stdout: "tls_server_config"},
		{name: "missing", command: "cat", args: []string{"--", "/etc/nope"}, exitCode: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.Run(ctx, tt.command, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.exitCode, res.ExitCode)
			assert.Contains(t, res.Stdout, tt.stdout)
		})
	}
}
