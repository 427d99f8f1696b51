package step

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes for step failures.
const (
	ErrCodeCommandFailed  = "COMMAND_FAILED"
	ErrCodeCommandMissing = "COMMAND_MISSING"
	ErrCodeDownloadFailed = "DOWNLOAD_FAILED"
	ErrCodeCheckFailed    = "CHECK_FAILED"
	ErrCodeApplyFailed    = "APPLY_FAILED"
	ErrCodeRenderFailed   = "RENDER_FAILED"
	ErrCodeInterrupted    = "INTERRUPTED"
	ErrCodeNotFound       = "NOT_FOUND"
)

// Sentinel errors for errors.Is comparisons by kind.
var (
	ErrPrivilege     = &StepError{Kind: KindPrivilege}
	ErrNotFound      = &StepError{Kind: KindNotFound}
	ErrNetwork       = &StepError{Kind: KindNetwork}
	ErrProcess       = &StepError{Kind: KindProcess}
	ErrAlreadyExists = &StepError{Kind: KindAlreadyExists}
	ErrInterrupted   = &StepError{Kind: KindInterrupted}
)

// StepError is a structured step failure with an actionable suggestion.
type StepError struct {
	Code       string // Error code for categorization
	Kind       Kind   // Error kind driving executor policy and reporting
	Message    string // User-friendly error message
	StepID     string // Step ID if applicable
	Command    string // Command line that failed, if any
	ExitCode   int    // Exit code of the failed command
	Stderr     string // Captured stderr of the failed command
	Suggestion string // Actionable suggestion to fix the error
	Underlying error  // Wrapped error for error chain
}

// Error returns the formatted error message.
func (e *StepError) Error() string {
	var b strings.Builder

	if e.StepID != "" {
		fmt.Fprintf(&b, "step %q: ", e.StepID)
	}
	b.WriteString(e.Message)

	if e.Command != "" {
		fmt.Fprintf(&b, " (%s exited %d)", e.Command, e.ExitCode)
	}
	if stderr := firstLine(e.Stderr); stderr != "" {
		fmt.Fprintf(&b, ": %s", stderr)
	} else if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}

	return b.String()
}

// Unwrap returns the underlying error for error chain support.
func (e *StepError) Unwrap() error {
	return e.Underlying
}

// Is matches another StepError by kind, so errors.Is(err, ErrNetwork) works.
func (e *StepError) Is(target error) bool {
	t, ok := target.(*StepError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Format returns a fully formatted error with all details.
func (e *StepError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)

	if e.StepID != "" {
		fmt.Fprintf(&b, "\n  Step: %s", e.StepID)
	}
	if e.Command != "" {
		fmt.Fprintf(&b, "\n  Command: %s (exit %d)", e.Command, e.ExitCode)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&b, "\n  Stderr: %s", stderr)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Suggestion: %s", e.Suggestion)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, "\n  Cause: %s", e.Underlying.Error())
	}

	return b.String()
}

// WithStepID returns a copy of the error with the step ID set.
func (e *StepError) WithStepID(stepID string) *StepError {
	c := *e
	c.StepID = stepID
	return &c
}

// WithSuggestion returns a copy of the error with a suggestion set.
func (e *StepError) WithSuggestion(suggestion string) *StepError {
	c := *e
	c.Suggestion = suggestion
	return &c
}

// WithKind returns a copy of the error with a different kind.
func (e *StepError) WithKind(kind Kind) *StepError {
	c := *e
	c.Kind = kind
	return &c
}

// NewError creates a StepError with the given code, kind and message.
func NewError(code string, kind Kind, message string) *StepError {
	return &StepError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(what, path string) *StepError {
	return &StepError{
		Code:       ErrCodeNotFound,
		Kind:       KindNotFound,
		Message:    fmt.Sprintf("%s not found at %s", what, path),
		Suggestion: "Run 'nodeexpoctor install' first.",
	}
}

// NewCheckFailedError wraps a failure to determine a step's status.
func NewCheckFailedError(stepID string, err error) *StepError {
	return &StepError{
		Code:       ErrCodeCheckFailed,
		Kind:       KindOf(err),
		Message:    "step status check failed",
		StepID:     stepID,
		Suggestion: "The step could not determine the current state of the host; re-run with --verbose.",
		Underlying: err,
	}
}

// NewApplyFailedError wraps a step failure that is not already a StepError.
func NewApplyFailedError(stepID string, err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		if se.StepID == "" {
			return se.WithStepID(stepID)
		}
		return se
	}
	return &StepError{
		Code:       ErrCodeApplyFailed,
		Kind:       KindOf(err),
		Message:    "step failed to apply",
		StepID:     stepID,
		Underlying: err,
	}
}

// NewInterruptedError reports a step that did not run because the run was cancelled.
func NewInterruptedError(stepID string, cause error) *StepError {
	return &StepError{
		Code:       ErrCodeInterrupted,
		Kind:       KindInterrupted,
		Message:    "interrupted before the step ran",
		StepID:     stepID,
		Suggestion: "Re-run the same command; completed steps are detected and skipped.",
		Underlying: cause,
	}
}

// KindOf extracts the kind from an error chain.
// Context cancellation maps to KindInterrupted; anything unclassified is KindProcess.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var se *StepError
	if errors.As(err, &se) && se.Kind != KindNone {
		return se.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindInterrupted
	}
	return KindProcess
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
