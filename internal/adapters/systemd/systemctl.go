// Package systemd drives systemd for a single unit, either through the
// systemctl and journalctl programs or over D-Bus.
package systemd

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// Backend names accepted by --backend.
const (
	BackendSystemctl = "systemctl"
	BackendDBus      = "dbus"
)

// showProperties are the unit properties read by State.
var showProperties = []string{"LoadState", "ActiveState", "SubState", "UnitFileState", "NeedDaemonReload"}

// Systemctl implements ports.ServiceManager with the systemctl program.
// Queries run unprivileged; every state change goes through privileged.
type Systemctl struct {
	runner     ports.CommandRunner
	privileged ports.CommandRunner
	timeout    time.Duration
}

// NewSystemctl creates a Systemctl manager. timeout bounds each call.
func NewSystemctl(runner, privileged ports.CommandRunner, timeout time.Duration) *Systemctl {
	return &Systemctl{runner: runner, privileged: privileged, timeout: timeout}
}

// Reload runs systemctl daemon-reload.
func (s *Systemctl) Reload(ctx context.Context) error {
	_, err := s.run(ctx, s.privileged, "daemon-reload")
	return err
}

// Enable runs systemctl enable.
func (s *Systemctl) Enable(ctx context.Context, unit string) error {
	_, err := s.run(ctx, s.privileged, "enable", unit)
	return err
}

// Disable runs systemctl disable.
func (s *Systemctl) Disable(ctx context.Context, unit string) error {
	_, err := s.run(ctx, s.privileged, "disable", unit)
	return err
}

// Start runs systemctl start.
func (s *Systemctl) Start(ctx context.Context, unit string) error {
	_, err := s.run(ctx, s.privileged, "start", unit)
	return err
}

// Stop runs systemctl stop.
func (s *Systemctl) Stop(ctx context.Context, unit string) error {
	_, err := s.run(ctx, s.privileged, "stop", unit)
	return err
}

// Restart runs systemctl restart.
func (s *Systemctl) Restart(ctx context.Context, unit string) error {
	_, err := s.run(ctx, s.privileged, "restart", unit)
	return err
}

// State reads the unit's properties with systemctl show. An unknown unit is
// not an error: systemd reports it with LoadState=not-found.
func (s *Systemctl) State(ctx context.Context, unit string) (ports.UnitState, error) {
	out, err := s.run(ctx, s.runner, "show", unit, "--property="+strings.Join(showProperties, ","))
	if err != nil {
		return ports.UnitState{}, err
	}
	return ParseShow(unit, out), nil
}

func (s *Systemctl) run(ctx context.Context, runner ports.CommandRunner, args ...string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := runner.Run(ctx, "systemctl", args...)
	if err != nil {
		return "", step.RunError("systemctl", args, err)
	}
	if !result.Success() {
		return "", step.CommandError("systemctl", args, result)
	}
	return result.Stdout, nil
}

// ParseShow parses "Key=Value" lines printed by systemctl show.
func ParseShow(unit, out string) ports.UnitState {
	props := make(map[string]string, len(showProperties))
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if ok {
			props[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	return ports.UnitState{
		Name:          unit,
		LoadState:     props["LoadState"],
		ActiveState:   props["ActiveState"],
		SubState:      props["SubState"],
		UnitFileState: props["UnitFileState"],
		NeedsReload:   props["NeedDaemonReload"] == "yes",
	}
}

// ParseBackend validates a backend name.
func ParseBackend(name string) (string, error) {
	switch name {
	case "", BackendSystemctl:
		return BackendSystemctl, nil
	case BackendDBus:
		return BackendDBus, nil
	}
	return "", fmt.Errorf("unknown backend %q (want systemctl or dbus)", name)
}

var _ ports.ServiceManager = (*Systemctl)(nil)
