package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// ServiceManager is a scripted ports.ServiceManager. State returns the
// queued states in order and repeats the last one.
type ServiceManager struct {
	mu     sync.Mutex
	states []ports.UnitState
	errors map[string]error
	calls  []string
}

// NewServiceManager creates a ServiceManager that reports the given states.
func NewServiceManager(states ...ports.UnitState) *ServiceManager {
	return &ServiceManager{states: states, errors: make(map[string]error)}
}

// FailOn makes the named operation ("reload", "enable", "start", ...) fail.
func (m *ServiceManager) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[op] = err
}

// Calls returns the operations performed, e.g. "start node_exporter.service".
func (m *ServiceManager) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *ServiceManager) record(op, unit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if unit == "" {
		m.calls = append(m.calls, op)
	} else {
		m.calls = append(m.calls, op+" "+unit)
	}
	return m.errors[op]
}

func (m *ServiceManager) Reload(_ context.Context) error { return m.record("reload", "") }
func (m *ServiceManager) Enable(_ context.Context, unit string) error {
	return m.record("enable", unit)
}
func (m *ServiceManager) Disable(_ context.Context, unit string) error {
	return m.record("disable", unit)
}
func (m *ServiceManager) Start(_ context.Context, unit string) error { return m.record("start", unit) }
func (m *ServiceManager) Stop(_ context.Context, unit string) error  { return m.record("stop", unit) }
func (m *ServiceManager) Restart(_ context.Context, unit string) error {
	return m.record("restart", unit)
}

// State returns the next scripted state.
func (m *ServiceManager) State(_ context.Context, unit string) (ports.UnitState, error) {
	if err := m.record("state", unit); err != nil {
		return ports.UnitState{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.states) == 0 {
		return ports.UnitState{}, fmt.Errorf("no scripted state for %s", unit)
	}
	s := m.states[0]
	if len(m.states) > 1 {
		m.states = m.states[1:]
	}
	s.Name = unit
	return s, nil
}

// Journal is a scripted ports.Journal.
type Journal struct {
	Output string
	Err    error

	mu      sync.Mutex
	windows []time.Duration
}

// Since returns the scripted output.
func (j *Journal) Since(_ context.Context, _ string, window time.Duration) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.windows = append(j.windows, window)
	return j.Output, j.Err
}

// Windows returns the requested look-back windows.
func (j *Journal) Windows() []time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]time.Duration(nil), j.windows...)
}

var (
	_ ports.ServiceManager = (*ServiceManager)(nil)
	_ ports.Journal        = (*Journal)(nil)
)
