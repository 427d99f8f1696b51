package ports

import (
	"context"
	"time"
)

// Unit load and activation states as reported by systemd.
const (
	LoadStateLoaded   = "loaded"
	LoadStateNotFound = "not-found"

	ActiveStateActive   = "active"
	ActiveStateInactive = "inactive"
	ActiveStateFailed   = "failed"

	UnitFileStateEnabled = "enabled"
)

// UnitState is a snapshot of a systemd unit's load and run state.
type UnitState struct {
	Name          string
	LoadState     string
	ActiveState   string
	SubState      string
	UnitFileState string
	NeedsReload   bool
}

// Loaded returns true if systemd knows the unit.
func (s UnitState) Loaded() bool {
	return s.LoadState == LoadStateLoaded
}

// Active returns true if the unit is running.
func (s UnitState) Active() bool {
	return s.ActiveState == ActiveStateActive
}

// Failed returns true if the unit entered the failed state.
func (s UnitState) Failed() bool {
	return s.ActiveState == ActiveStateFailed
}

// Enabled returns true if the unit starts at boot.
func (s UnitState) Enabled() bool {
	return s.UnitFileState == UnitFileStateEnabled
}

// ServiceManager drives the init system for a single unit at a time.
type ServiceManager interface {
	Reload(ctx context.Context) error
	Enable(ctx context.Context, unit string) error
	Disable(ctx context.Context, unit string) error
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	State(ctx context.Context, unit string) (UnitState, error)
}

// Journal reads recent log output for a unit.
type Journal interface {
	Since(ctx context.Context, unit string, window time.Duration) (string, error)
}
