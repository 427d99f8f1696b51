package step

// Status represents the current state of a step.
type Status string

const (
	// StatusSatisfied indicates the step's desired state is met.
	StatusSatisfied Status = "satisfied"
	// StatusNeedsApply indicates the step needs to be applied.
	StatusNeedsApply Status = "needs-apply"
	// StatusUnknown indicates the step's state could not be determined.
	StatusUnknown Status = "unknown"
	// StatusFailed indicates the step failed during check or apply.
	StatusFailed Status = "failed"
	// StatusSkipped indicates the step did not run (dependency failed, run aborted or interrupted).
	StatusSkipped Status = "skipped"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// NeedsAction returns true if this status requires execution or attention.
func (s Status) NeedsAction() bool {
	switch s {
	case StatusNeedsApply, StatusUnknown, StatusFailed:
		return true
	case StatusSatisfied, StatusSkipped:
		return false
	}
	return false
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSatisfied, StatusFailed, StatusSkipped:
		return true
	case StatusNeedsApply, StatusUnknown:
		return false
	}
	return false
}
