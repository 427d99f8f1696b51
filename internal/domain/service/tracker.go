// Package service models the observed lifecycle of the managed unit.
package service

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// State is an observed lifecycle state of the service.
type State string

// Lifecycle states.
const (
	StateNotInstalled State = "not-installed"
	StateStopped      State = "stopped"
	StateRunning      State = "running"
	StateFailed       State = "failed"
)

// Events driving the lifecycle machine.
const (
	EventInstalled = "INSTALLED"
	EventStarted   = "STARTED"
	EventStopped   = "STOPPED"
	EventFailed    = "FAILED"
	EventRemoved   = "REMOVED"
)

// Transition records one state change.
type Transition struct {
	Event string
	To    State
}

// TrackerContext is the statekit context type.
type TrackerContext struct{}

// Tracker follows the service through its lifecycle from observations of
// the init system. It lives for one command and is never persisted.
type Tracker struct {
	mu       sync.Mutex
	interp   *statekit.Interpreter[TrackerContext]
	history  []Transition
	failures int
}

// NewTracker builds and starts a tracker in StateNotInstalled.
func NewTracker() (*Tracker, error) {
	t := &Tracker{}

	machine, err := statekit.NewMachine[TrackerContext]("service-lifecycle").
		WithInitial(string(StateNotInstalled)).
		WithContext(TrackerContext{}).
		WithAction("countFailure", func(_ *TrackerContext, _ statekit.Event) {
			t.failures++
		}).
		State(string(StateNotInstalled)).
		On(EventInstalled).Target(string(StateStopped)).Done().
		State(string(StateStopped)).
		On(EventStarted).Target(string(StateRunning)).
		On(EventFailed).Target(string(StateFailed)).
		On(EventRemoved).Target(string(StateNotInstalled)).Done().
		State(string(StateRunning)).
		On(EventStopped).Target(string(StateStopped)).
		On(EventFailed).Target(string(StateFailed)).
		On(EventRemoved).Target(string(StateNotInstalled)).Done().
		State(string(StateFailed)).
		OnEntry("countFailure").
		On(EventStarted).Target(string(StateRunning)).
		On(EventStopped).Target(string(StateStopped)).
		On(EventRemoved).Target(string(StateNotInstalled)).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build lifecycle machine: %w", err)
	}

	t.interp = statekit.NewInterpreter(machine)
	t.interp.Start()
	return t, nil
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current()
}

func (t *Tracker) current() State {
	return State(t.interp.State().Value)
}

// Failures returns how many times the service was observed entering StateFailed.
func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// History returns the transitions taken so far.
func (t *Tracker) History() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, len(t.history))
	copy(out, t.history)
	return out
}

// Observe feeds a unit snapshot into the machine and returns the new state.
// Intermediate events are sent as needed, e.g. a first observation of a
// running unit passes through StateStopped.
func (t *Tracker) Observe(unit ports.UnitState) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := Classify(unit)
	if target == t.current() {
		return target
	}

	if target == StateNotInstalled {
		t.send(EventRemoved)
		return t.current()
	}

	if t.current() == StateNotInstalled {
		t.send(EventInstalled)
		if target == StateStopped {
			return t.current()
		}
	}

	switch target {
	case StateRunning:
		t.send(EventStarted)
	case StateFailed:
		t.send(EventFailed)
	case StateStopped:
		t.send(EventStopped)
	case StateNotInstalled:
	}

	return t.current()
}

func (t *Tracker) send(event string) {
	before := t.current()
	t.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	if after := t.current(); after != before {
		t.history = append(t.history, Transition{Event: event, To: after})
	}
}

// Stop releases the interpreter.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interp.Stop()
}

// Classify maps a unit snapshot onto a lifecycle state.
func Classify(unit ports.UnitState) State {
	switch {
	case !unit.Loaded():
		return StateNotInstalled
	case unit.Active():
		return StateRunning
	case unit.Failed():
		return StateFailed
	default:
		return StateStopped
	}
}
