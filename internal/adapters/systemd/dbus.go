package systemd

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// jobModeReplace queues a job and replaces conflicting ones.
const jobModeReplace = "replace"

// jobDone is the result systemd reports for a successful job.
const jobDone = "done"

// busConn is the subset of *dbus.Conn the manager uses.
type busConn interface {
	ReloadContext(ctx context.Context) error
	EnableUnitFilesContext(ctx context.Context, files []string, runtime, force bool) (bool, []dbus.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]dbus.DisableUnitFileChange, error)
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error)
	Close()
}

// DBus implements ports.ServiceManager over the systemd D-Bus API.
// Authorization is left to polkit; a denial surfaces as a PrivilegeError.
type DBus struct {
	conn    busConn
	timeout time.Duration
}

// NewDBus connects to the system bus.
func NewDBus(ctx context.Context, timeout time.Duration) (*DBus, error) {
	conn, err := dbus.NewSystemdConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	return &DBus{conn: conn, timeout: timeout}, nil
}

// Close releases the bus connection.
func (d *DBus) Close() {
	d.conn.Close()
}

// Reload asks systemd to reload unit files.
func (d *DBus) Reload(ctx context.Context) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()
	if err := d.conn.ReloadContext(ctx); err != nil {
		return busError("Reload", "", err)
	}
	return nil
}

// Enable enables the unit file.
func (d *DBus) Enable(ctx context.Context, unit string) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()
	if _, _, err := d.conn.EnableUnitFilesContext(ctx, []string{unit}, false, true); err != nil {
		return busError("EnableUnitFiles", unit, err)
	}
	return nil
}

// Disable disables the unit file.
func (d *DBus) Disable(ctx context.Context, unit string) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()
	if _, err := d.conn.DisableUnitFilesContext(ctx, []string{unit}, false); err != nil {
		return busError("DisableUnitFiles", unit, err)
	}
	return nil
}

// Start starts the unit and waits for the job to finish.
func (d *DBus) Start(ctx context.Context, unit string) error {
	return d.job(ctx, "StartUnit", unit, d.conn.StartUnitContext)
}

// Stop stops the unit and waits for the job to finish.
func (d *DBus) Stop(ctx context.Context, unit string) error {
	return d.job(ctx, "StopUnit", unit, d.conn.StopUnitContext)
}

// Restart restarts the unit and waits for the job to finish.
func (d *DBus) Restart(ctx context.Context, unit string) error {
	return d.job(ctx, "RestartUnit", unit, d.conn.RestartUnitContext)
}

// State reads the unit's load and activation properties.
func (d *DBus) State(ctx context.Context, unit string) (ports.UnitState, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	props, err := d.conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		return ports.UnitState{}, busError("GetUnitProperties", unit, err)
	}

	state := ports.UnitState{
		Name:          unit,
		LoadState:     stringProp(props, "LoadState"),
		ActiveState:   stringProp(props, "ActiveState"),
		SubState:      stringProp(props, "SubState"),
		UnitFileState: stringProp(props, "UnitFileState"),
	}
	if v, ok := props["NeedDaemonReload"].(bool); ok {
		state.NeedsReload = v
	}
	return state, nil
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

func (d *DBus) job(ctx context.Context, method, unit string, fn jobFunc) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()

	ch := make(chan string, 1)
	if _, err := fn(ctx, unit, jobModeReplace, ch); err != nil {
		return busError(method, unit, err)
	}

	select {
	case result := <-ch:
		if result != jobDone {
			e := step.NewError(step.ErrCodeCommandFailed, step.KindProcess,
				fmt.Sprintf("%s job for %s finished with result %q", method, unit, result))
			return e.WithSuggestion("Run 'nodeexpoctor status' to see the unit's recent log.")
		}
		return nil
	case <-ctx.Done():
		return step.RunError("dbus "+method, []string{unit}, ctx.Err())
	}
}

func (d *DBus) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func busError(method, unit string, err error) error {
	kind := step.ClassifyMessage(err.Error())
	if kind == step.KindAlreadyExists {
		kind = step.KindProcess
	}
	e := &step.StepError{
		Code:       step.ErrCodeCommandFailed,
		Kind:       kind,
		Message:    "systemd D-Bus call failed",
		Command:    "dbus " + method + " " + unit,
		ExitCode:   -1,
		Underlying: err,
	}
	if kind == step.KindPrivilege {
		e.Suggestion = "Run as root or use --backend systemctl with sudo."
	}
	return e
}

func stringProp(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

var _ ports.ServiceManager = (*DBus)(nil)
