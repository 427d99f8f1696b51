package exporter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/nodeexpoctor/internal/adapters/command"
	"github.com/felixgeelhaar/nodeexpoctor/internal/adapters/systemd"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/descriptor"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/execution"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
	"github.com/felixgeelhaar/nodeexpoctor/internal/provider/exporter"
	"github.com/felixgeelhaar/nodeexpoctor/internal/testutil/fakehost"
)

const workDir = "/home/tester/.cache/nodeexpoctor"

func newHost() (*fakehost.Host, *exporter.Env) {
	h := fakehost.New(workDir)
	priv := command.NewPrivilegedRunner(h, command.SudoAlways, 1000)
	env := &exporter.Env{
		Runner:     h,
		Privileged: priv,
		FS:         h,
		Services:   systemd.NewSystemctl(h, priv, time.Minute),
		Timeouts:   exporter.DefaultTimeouts(),
		Retries:    1,
	}
	return h, env
}

func runInstall(t *testing.T, steps []step.Step) execution.ExecuteResult {
	t.Helper()
	return execute(t, execution.NewExecutor(), steps)
}

func runRemove(t *testing.T, steps []step.Step) execution.ExecuteResult {
	t.Helper()
	return execute(t, execution.NewExecutor().WithBenign(step.KindAlreadyExists, step.KindNotFound), steps)
}

func execute(t *testing.T, e *execution.Executor, steps []step.Step) execution.ExecuteResult {
	t.Helper()
	result, err := e.Execute(context.Background(), steps)
	require.NoError(t, err)
	return result
}

func resultOf(t *testing.T, r execution.ExecuteResult, id step.ID) execution.StepResult {
	t.Helper()
	res, ok := r.Result(id)
	require.True(t, ok, "no result for %s", id)
	return res
}

func TestInstall_FreshHost(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	d := descriptor.Default(workDir)

	result := runInstall(t, exporter.NewProvider(d, env).InstallSteps())

	require.True(t, result.Succeeded(), "failures: %v", result.Failures())
	for _, r := range result.Results {
		assert.True(t, r.Changed(), "%s should have changed", r.StepID())
	}

	assert.True(t, h.HasUser("node_exporter"))
	assert.True(t, h.HasGroup("node_exporter"))
	for _, dir := range d.Directories() {
		assert.Equal(t, "node_exporter:node_exporter", h.Owner(dir), dir)
	}
	assert.Equal(t, "node_exporter:node_exporter", h.Owner(d.BinaryPath))
	assert.Equal(t, "root:root", h.Owner("/usr/local/bin"))

	cfg, ok := h.Content(d.ConfigFile)
	require.True(t, ok)
	assert.NotEmpty(t, cfg)

	unitFile, ok := h.Content(d.UnitPath)
	require.True(t, ok)
	assert.Contains(t, unitFile, "ExecStart="+d.ExecStart())
	assert.EqualValues(t, 0o644, h.Mode(d.UnitPath))

	assert.True(t, h.UnitActive(d.UnitName()))
	assert.True(t, h.UnitEnabled(d.UnitName()))
}

func TestInstall_RerunIsNoop(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	d := descriptor.Default(workDir)
	p := exporter.NewProvider(d, env)

	require.True(t, runInstall(t, p.InstallSteps()).Succeeded())
	h.ResetCalls()

	result := runInstall(t, p.InstallSteps())

	require.True(t, result.Succeeded())
	assert.Zero(t, result.Summary().Changed)
	assert.Equal(t, step.KindAlreadyExists, resultOf(t, result, exporter.IDUser).Condition())
	assert.Equal(t, step.KindAlreadyExists, resultOf(t, result, exporter.IDBinary).Condition())
	assert.Zero(t, h.Ran("useradd"))
	assert.Zero(t, h.Ran("install", "-d"))
	assert.Zero(t, h.Ran("wget"))
	assert.Zero(t, h.Ran("systemctl", "restart"))
}

func TestInstall_ExistingUserIsAlreadyExists(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	h.AddUser("node_exporter")
	d := descriptor.Default(workDir)

	result := runInstall(t, exporter.NewProvider(d, env).InstallSteps())

	require.True(t, result.Succeeded())
	user := resultOf(t, result, exporter.IDUser)
	assert.False(t, user.Changed())
	assert.Equal(t, step.KindAlreadyExists, user.Condition())
	assert.Zero(t, h.Ran("useradd"))
}

func TestInstall_DownloadFailureAborts(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	h.FailDownload = true
	d := descriptor.Default(workDir)

	result := runInstall(t, exporter.NewProvider(d, env).InstallSteps())

	assert.True(t, result.Aborted)
	assert.Equal(t, exporter.IDFetch, result.AbortedBy)

	fetch := resultOf(t, result, exporter.IDFetch)
	require.True(t, fetch.Failed())
	assert.Equal(t, step.KindNetwork, fetch.Kind())

	for _, id := range []step.ID{exporter.IDExtract, exporter.IDBinary, exporter.IDConfig, exporter.IDUnit, exporter.IDService} {
		assert.True(t, resultOf(t, result, id).Skipped(), "%s should be skipped", id)
	}

	assert.False(t, h.Exists(d.PartialArchivePath()))
	assert.False(t, h.Exists(d.ArchivePath()))
	assert.Zero(t, h.Ran("tar"))
	assert.Zero(t, h.Ran("install", "-o", d.User, "-g", d.Group, "-m", "0755"))
	assert.Zero(t, h.Ran("systemctl", "enable"))
	assert.Zero(t, h.Ran("systemctl", "start"))
}

func TestInstall_CorruptArchiveIsDeleted(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	h.CorruptArchive = true
	d := descriptor.Default(workDir)

	result := runInstall(t, exporter.NewProvider(d, env).InstallSteps())

	extract := resultOf(t, result, exporter.IDExtract)
	require.True(t, extract.Failed())
	assert.Equal(t, step.KindProcess, extract.Kind())
	assert.False(t, h.Exists(d.ArchivePath()))
	assert.True(t, resultOf(t, result, exporter.IDBinary).Skipped())
	assert.True(t, resultOf(t, result, exporter.IDService).Skipped())

	// Unrelated steps still run.
	assert.True(t, resultOf(t, result, exporter.IDConfig).Success())
	assert.True(t, resultOf(t, result, exporter.IDUnit).Success())
}

func TestInstall_ArchiveWithoutBinaryFails(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	h.Intercept = func(command string, _ []string) (ports.CommandResult, bool) {
		return ports.CommandResult{}, command == "tar"
	}
	d := descriptor.Default(workDir)

	result := runInstall(t, exporter.NewProvider(d, env).InstallSteps())

	extract := resultOf(t, result, exporter.IDExtract)
	require.True(t, extract.Failed())
	assert.Equal(t, step.KindNotFound, extract.Kind())
	assert.Contains(t, extract.Error().Error(), d.ExtractedBinary())

	for _, id := range []step.ID{exporter.IDBinary, exporter.IDService} {
		assert.True(t, resultOf(t, result, id).Skipped(), "%s should be skipped", id)
	}
	assert.False(t, result.Succeeded())
	assert.False(t, h.Exists(d.BinaryPath))
	assert.Zero(t, h.Ran("systemctl", "start"))
}

func TestInstall_ConfigFailureSkipsService(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	d := descriptor.Default(workDir)
	h.Intercept = func(command string, args []string) (ports.CommandResult, bool) {
		if command != "install" || len(args) == 0 || args[len(args)-1] != d.ConfigFile {
			return ports.CommandResult{}, false
		}
		return ports.CommandResult{
			ExitCode: 1,
			Stderr:   "install: cannot create regular file '" + d.ConfigFile + "': Read-only file system",
		}, true
	}

	result := runInstall(t, exporter.NewProvider(d, env).InstallSteps())

	require.True(t, resultOf(t, result, exporter.IDConfig).Failed())
	svc := resultOf(t, result, exporter.IDService)
	assert.True(t, svc.Skipped())
	assert.Contains(t, svc.Reason(), exporter.IDConfig.String())

	assert.True(t, resultOf(t, result, exporter.IDBinary).Success())
	assert.True(t, resultOf(t, result, exporter.IDUnit).Success())
	assert.False(t, h.Exists(d.ConfigFile))
	assert.False(t, h.UnitActive(d.UnitName()))
	assert.Zero(t, h.Ran("systemctl", "enable"))
}

func TestInstall_ServiceFailsToStart(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	h.FailStart = true
	d := descriptor.Default(workDir)

	result := runInstall(t, exporter.NewProvider(d, env).InstallSteps())

	svc := resultOf(t, result, exporter.IDService)
	require.True(t, svc.Failed())
	assert.Equal(t, step.KindProcess, svc.Kind())
	assert.False(t, h.UnitActive(d.UnitName()))
}

func TestInstall_SudoDenied(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	h.DenySudo = true
	d := descriptor.Default(workDir)

	result := runInstall(t, exporter.NewProvider(d, env).InstallSteps())

	user := resultOf(t, result, exporter.IDUser)
	require.True(t, user.Failed())
	assert.Equal(t, step.KindPrivilege, user.Kind())
	assert.True(t, resultOf(t, result, exporter.IDDirectories).Skipped())
	assert.False(t, h.HasUser("node_exporter"))

	// The download does not need root.
	assert.True(t, resultOf(t, result, exporter.IDFetch).Success())
}

func TestInstall_UpgradeRestartsService(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	old := descriptor.Default(workDir)
	require.True(t, runInstall(t, exporter.NewProvider(old, env).InstallSteps()).Succeeded())
	h.ResetCalls()

	next := old
	next.Version = "1.9.0"
	result := runInstall(t, exporter.NewProvider(next, env).InstallSteps())

	require.True(t, result.Succeeded(), "failures: %v", result.Failures())
	assert.True(t, resultOf(t, result, exporter.IDBinary).Changed())
	assert.Equal(t, step.KindAlreadyExists, resultOf(t, result, exporter.IDUnit).Condition())
	assert.Equal(t, 1, h.Ran("systemctl", "restart", next.UnitName()))
	assert.Equal(t, 1, h.Ran("wget"))

	version, err := env.InstalledVersion(context.Background(), next.BinaryPath)
	require.NoError(t, err)
	assert.Equal(t, "1.9.0", version)
}

func TestInstall_UnitChangeRestartsService(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	d := descriptor.Default(workDir)
	require.True(t, runInstall(t, exporter.NewProvider(d, env).InstallSteps()).Succeeded())
	h.ResetCalls()

	d.ListenAddress = ":9200"
	result := runInstall(t, exporter.NewProvider(d, env).InstallSteps())

	require.True(t, result.Succeeded())
	assert.True(t, resultOf(t, result, exporter.IDUnit).Changed())
	assert.Equal(t, 1, h.Ran("systemctl", "daemon-reload"))
	assert.Equal(t, 1, h.Ran("systemctl", "restart", d.UnitName()))
}

func TestInstall_ConfigNotOverwritten(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	d := descriptor.Default(workDir)
	h.AddUser("node_exporter")
	h.SetFile(d.ConfigFile, "tls_server_config: {}\n", "node_exporter", 0o640)

	result := runInstall(t, exporter.NewProvider(d, env).InstallSteps())

	require.True(t, result.Succeeded())
	assert.Equal(t, step.KindAlreadyExists, resultOf(t, result, exporter.IDConfig).Condition())
	content, _ := h.Content(d.ConfigFile)
	assert.Equal(t, "tls_server_config: {}\n", content)
}

func TestPlan_FreshHost(t *testing.T) {
	t.Parallel()

	_, env := newHost()
	d := descriptor.Default(workDir)

	plan, err := execution.NewPlanner().Plan(context.Background(), exporter.NewProvider(d, env).InstallSteps())
	require.NoError(t, err)

	require.Equal(t, 8, plan.Len())
	for _, entry := range plan.Entries() {
		assert.NoError(t, entry.Error(), entry.Step().ID().String())
		assert.Equal(t, step.StatusNeedsApply, entry.Status(), entry.Step().ID().String())
		assert.NotEmpty(t, entry.Explanation().Summary())
	}

	unit := plan.Entries()[6]
	assert.Equal(t, exporter.IDUnit, unit.Step().ID())
	assert.Equal(t, step.ChangeCreate, unit.Diff().Change())
	assert.Contains(t, unit.Diff().Detail(), "+ExecStart="+d.ExecStart())

	fetch := plan.Entries()[2]
	assert.Contains(t, fetch.Diff().To(), "node_exporter-1.8.1.linux-amd64.tar.gz")
}

func TestPlan_ShowsUnitDiff(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	d := descriptor.Default(workDir)
	h.SetFile(d.UnitPath, "[Service]\nExecStart=/opt/old/node_exporter\n", "root", 0o644)

	plan, err := execution.NewPlanner().Plan(context.Background(), exporter.NewProvider(d, env).InstallSteps())
	require.NoError(t, err)

	unit := plan.Entries()[6]
	assert.Equal(t, step.ChangeUpdate, unit.Diff().Change())
	assert.Contains(t, unit.Diff().Detail(), "-ExecStart=/opt/old/node_exporter")
}

func TestRemove_AfterInstall(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	d := descriptor.Default(workDir)
	p := exporter.NewProvider(d, env)
	require.True(t, runInstall(t, p.InstallSteps()).Succeeded())
	h.ResetCalls()

	result := runRemove(t, p.RemoveSteps())

	require.True(t, result.Succeeded(), "failures: %v", result.Failures())
	for _, path := range []string{d.BinaryPath, d.ConfigDir, d.DataDir, d.UnitPath, d.ArchivePath(), d.ExtractDir()} {
		assert.False(t, h.Exists(path), path)
	}
	assert.False(t, h.HasUser("node_exporter"))
	assert.False(t, h.HasGroup("node_exporter"))
	assert.False(t, h.UnitActive(d.UnitName()))
	assert.False(t, h.UnitEnabled(d.UnitName()))
	assert.Equal(t, 1, h.Ran("systemctl", "daemon-reload"))
}

func TestRemove_NeverInstalled(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	d := descriptor.Default(workDir)

	result := runRemove(t, exporter.NewProvider(d, env).RemoveSteps())

	require.True(t, result.Succeeded())
	for _, r := range result.Results {
		assert.False(t, r.Changed(), r.StepID().String())
		assert.Equal(t, step.KindNotFound, r.Condition(), r.StepID().String())
	}
	assert.Zero(t, h.Ran("userdel"))
	assert.Zero(t, h.Ran("rm"))
}

func TestRemove_ContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	h, env := newHost()
	d := descriptor.Default(workDir)
	p := exporter.NewProvider(d, env)
	require.True(t, runInstall(t, p.InstallSteps()).Succeeded())

	h.DenySudo = true
	result := runRemove(t, p.RemoveSteps())

	assert.True(t, result.HasFailures())
	assert.True(t, resultOf(t, result, exporter.IDRemoveService).Failed())
	assert.True(t, resultOf(t, result, exporter.IDRemoveUser).Failed())
	for _, r := range result.Results {
		assert.False(t, r.Skipped(), r.StepID().String())
	}
	// Work-directory artifacts need no privilege.
	assert.True(t, resultOf(t, result, exporter.IDRemoveArtifacts).Success())
	assert.False(t, h.Exists(d.ArchivePath()))
}

func TestRemove_GroupDeletion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		exitCode int
		stderr   string
		wantOK   bool
	}{
		{"primary group of another user", 8, "groupdel: cannot remove the primary group of user 'backup'", true},
		{"group already gone", 6, "groupdel: group 'node_exporter' does not exist", true},
		{"group file locked", 10, "groupdel: cannot lock /etc/group; try again later.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, env := newHost()
			d := descriptor.Default(workDir)
			p := exporter.NewProvider(d, env)
			require.True(t, runInstall(t, p.InstallSteps()).Succeeded())

			h.Intercept = func(command string, _ []string) (ports.CommandResult, bool) {
				return ports.CommandResult{ExitCode: tt.exitCode, Stderr: tt.stderr}, command == "groupdel"
			}
			result := runRemove(t, p.RemoveSteps())

			user := resultOf(t, result, exporter.IDRemoveUser)
			assert.False(t, h.HasUser("node_exporter"))
			if tt.wantOK {
				assert.True(t, user.Success())
				assert.True(t, result.Succeeded(), "failures: %v", result.Failures())
				return
			}
			require.True(t, user.Failed())
			assert.Contains(t, user.Error().Error(), "groupdel")
			// The other deletions still run.
			assert.True(t, resultOf(t, result, exporter.IDRemoveBinary).Success())
			assert.False(t, h.Exists(d.BinaryPath))
		})
	}
}

func TestRemoveSteps_TextfileDirOutsideDataDir(t *testing.T) {
	t.Parallel()

	_, env := newHost()
	d := descriptor.Default(workDir)

	assert.Len(t, exporter.NewProvider(d, env).RemoveSteps(), 7)

	d.TextfileDir = "/var/lib/prometheus/node-exporter"
	steps := exporter.NewProvider(d, env).RemoveSteps()
	require.Len(t, steps, 8)

	var ids []string
	for _, s := range steps {
		ids = append(ids, s.ID().String())
	}
	assert.Contains(t, ids, exporter.IDRemoveTextfile.String())
}
