package systemd

import (
	"context"
	"errors"
	"testing"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	props  map[string]interface{}
	result string
	err    error
	calls  []string
}

func (f *fakeBus) ReloadContext(context.Context) error {
	f.calls = append(f.calls, "Reload")
	return f.err
}

func (f *fakeBus) EnableUnitFilesContext(_ context.Context, files []string, _, _ bool) (bool, []dbus.EnableUnitFileChange, error) {
	f.calls = append(f.calls, "Enable "+files[0])
	return false, nil, f.err
}

func (f *fakeBus) DisableUnitFilesContext(_ context.Context, files []string, _ bool) ([]dbus.DisableUnitFileChange, error) {
	f.calls = append(f.calls, "Disable "+files[0])
	return nil, f.err
}

func (f *fakeBus) StartUnitContext(_ context.Context, name, mode string, ch chan<- string) (int, error) {
	return f.queue("Start", name, mode, ch)
}

func (f *fakeBus) StopUnitContext(_ context.Context, name, mode string, ch chan<- string) (int, error) {
	return f.queue("Stop", name, mode, ch)
}

func (f *fakeBus) RestartUnitContext(_ context.Context, name, mode string, ch chan<- string) (int, error) {
	return f.queue("Restart", name, mode, ch)
}

func (f *fakeBus) queue(op, name, mode string, ch chan<- string) (int, error) {
	f.calls = append(f.calls, op+" "+name+" "+mode)
	if f.err != nil {
		return 0, f.err
	}
	ch <- f.result
	return 1, nil
}

func (f *fakeBus) GetUnitPropertiesContext(context.Context, string) (map[string]interface{}, error) {
	return f.props, f.err
}

func (f *fakeBus) Close() {}

func TestDBus_Jobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bus := &fakeBus{result: "done"}
	d := &DBus{conn: bus}

	require.NoError(t, d.Reload(ctx))
	require.NoError(t, d.Enable(ctx, unitName))
	require.NoError(t, d.Start(ctx, unitName))
	require.NoError(t, d.Restart(ctx, unitName))
	require.NoError(t, d.Stop(ctx, unitName))
	require.NoError(t, d.Disable(ctx, unitName))

	assert.Equal(t, []string{
		"Reload",
		"Enable " + unitName,
		"Start " + unitName + " replace",
		"Restart " + unitName + " replace",
		"Stop " + unitName + " replace",
		"Disable " + unitName,
	}, bus.calls)
}

func TestDBus_JobFailed(t *testing.T) {
	t.Parallel()

	d := &DBus{conn: &fakeBus{result: "failed"}}
	err := d.Start(context.Background(), unitName)

	var se *step.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, step.KindProcess, se.Kind)
	assert.Contains(t, se.Message, `"failed"`)
}

func TestDBus_AccessDenied(t *testing.T) {
	t.Parallel()

	d := &DBus{conn: &fakeBus{err: errors.New("Interactive authentication required.")}}
	err := d.Enable(context.Background(), unitName)
	assert.ErrorIs(t, err, step.ErrPrivilege)
}

func TestDBus_State(t *testing.T) {
	t.Parallel()

	d := &DBus{conn: &fakeBus{props: map[string]interface{}{
		"LoadState":        "loaded",
		"ActiveState":      "failed",
		"SubState":         "failed",
		"UnitFileState":    "enabled",
		"NeedDaemonReload": true,
	}}}

	state, err := d.State(context.Background(), unitName)
	require.NoError(t, err)
	assert.True(t, state.Loaded())
	assert.True(t, state.Failed())
	assert.True(t, state.Enabled())
	assert.True(t, state.NeedsReload)
	assert.Equal(t, unitName, state.Name)
}
