package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Error codes for categorization.
const (
	ErrCodeConfigNotFound   = "CONFIG_NOT_FOUND"
	ErrCodeConfigParse      = "CONFIG_PARSE"
	ErrCodeConfigRead       = "CONFIG_READ"
	ErrCodeUnsupportedType  = "CONFIG_UNSUPPORTED_TYPE"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// UserError is a configuration problem reported to the operator with a
// location and an actionable suggestion.
type UserError struct {
	Code       string // Error code for categorization (e.g., "CONFIG_NOT_FOUND")
	Message    string // User-friendly error message
	Context    string // File path, line number or field name
	Suggestion string // Actionable suggestion to fix the error
	Underlying error  // Wrapped error for error chain
}

// Error returns the message with its location.
func (e *UserError) Error() string {
	if e.Context == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (at %s)", e.Message, e.Context)
}

// Unwrap returns the underlying error for error chain support.
func (e *UserError) Unwrap() error {
	return e.Underlying
}

// Is matches another UserError by code.
func (e *UserError) Is(target error) bool {
	if t, ok := target.(*UserError); ok {
		return e.Code == t.Code
	}
	return false
}

// Format returns a fully formatted error with all details.
func (e *UserError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Context != "" {
		fmt.Fprintf(&b, "\n  Location: %s", e.Context)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Suggestion: %s", e.Suggestion)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, "\n  Cause: %s", e.Underlying.Error())
	}

	return b.String()
}

// NewUserError creates a new UserError with the given code and message.
func NewUserError(code, message string) *UserError {
	return &UserError{
		Code:    code,
		Message: message,
	}
}

// WithContext returns a copy with context set.
func (e *UserError) WithContext(ctx string) *UserError {
	c := *e
	c.Context = ctx
	return &c
}

// WithSuggestion returns a copy with suggestion set.
func (e *UserError) WithSuggestion(suggestion string) *UserError {
	c := *e
	c.Suggestion = suggestion
	return &c
}

// WithUnderlying returns a copy wrapping another error.
func (e *UserError) WithUnderlying(err error) *UserError {
	c := *e
	c.Underlying = err
	return &c
}

// ErrorList accumulates validation problems so they are reported together.
type ErrorList struct {
	errors []*UserError
}

// NewErrorList creates an empty ErrorList.
func NewErrorList() *ErrorList {
	return &ErrorList{
		errors: make([]*UserError, 0),
	}
}

// Add adds an error to the list. Nil is ignored.
func (l *ErrorList) Add(err *UserError) {
	if err != nil {
		l.errors = append(l.errors, err)
	}
}

// AddValidation adds a validation error for a field.
func (l *ErrorList) AddValidation(field, message, suggestion string) {
	l.Add(&UserError{
		Code:       ErrCodeValidationFailed,
		Message:    fmt.Sprintf("%s: %s", field, message),
		Context:    field,
		Suggestion: suggestion,
	})
}

// HasErrors returns true if there are any errors.
func (l *ErrorList) HasErrors() bool {
	return len(l.errors) > 0
}

// Len returns the number of errors.
func (l *ErrorList) Len() int {
	return len(l.errors)
}

// Errors returns a copy of the collected errors.
func (l *ErrorList) Errors() []*UserError {
	result := make([]*UserError, len(l.errors))
	copy(result, l.errors)
	return result
}

// Error implements the error interface.
func (l *ErrorList) Error() string {
	switch len(l.errors) {
	case 0:
		return ""
	case 1:
		return l.errors[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d configuration errors:", len(l.errors))
	for i, err := range l.errors {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, err.Error())
	}
	return b.String()
}

// Format returns every error in detailed form.
func (l *ErrorList) Format() string {
	parts := make([]string, 0, len(l.errors))
	for _, err := range l.errors {
		parts = append(parts, err.Format())
	}
	return strings.Join(parts, "\n")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l *ErrorList) Unwrap() []error {
	out := make([]error, 0, len(l.errors))
	for _, err := range l.errors {
		out = append(out, err)
	}
	return out
}

// AsError returns the ErrorList as an error, or nil if empty.
func (l *ErrorList) AsError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

// NewConfigNotFoundError reports a configuration file given explicitly that does not exist.
func NewConfigNotFoundError(path string) *UserError {
	return &UserError{
		Code:       ErrCodeConfigNotFound,
		Message:    fmt.Sprintf("configuration file not found: %s", path),
		Context:    path,
		Suggestion: "Check the --config path, or omit --config to use the built-in defaults.",
	}
}

// NewConfigReadError reports a configuration file that exists but cannot be read.
func NewConfigReadError(path string, err error) *UserError {
	return &UserError{
		Code:       ErrCodeConfigRead,
		Message:    "failed to read configuration file",
		Context:    path,
		Suggestion: "Check the file permissions.",
		Underlying: err,
	}
}

// NewUnsupportedTypeError reports a configuration file extension the loader does not handle.
func NewUnsupportedTypeError(path string) *UserError {
	return &UserError{
		Code:       ErrCodeUnsupportedType,
		Message:    "unsupported configuration file type",
		Context:    path,
		Suggestion: "Use a .yaml, .yml or .toml file.",
	}
}

// NewValidationFailedError creates a validation error for one field.
func NewValidationFailedError(field, message string) *UserError {
	return &UserError{
		Code:    ErrCodeValidationFailed,
		Message: fmt.Sprintf("validation failed for '%s': %s", field, message),
		Context: field,
	}
}

// GetUserError extracts a UserError from an error chain, if present.
func GetUserError(err error) *UserError {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	return nil
}

// NewYAMLParseError translates YAML decoder errors into user-friendly messages.
func NewYAMLParseError(path string, err error) *UserError {
	errStr := err.Error()
	var message, suggestion string

	switch {
	case strings.Contains(errStr, "not found in type"):
		message = "unknown configuration key"
		suggestion = "Check the key name for typos; see the example configuration in the README."

	case strings.Contains(errStr, "cannot unmarshal !!seq into"):
		message = "expected a single value or object but found a list"
		suggestion = "Only extra_flags takes a list; use 'key: value' everywhere else."

	case strings.Contains(errStr, "cannot unmarshal !!map into"):
		message = "expected a single value but found an object"
		suggestion = "Check the indentation of the keys under this section."

	case strings.Contains(errStr, "invalid duration"):
		message = "invalid duration"
		suggestion = "Durations are written like 30s, 5m or 1h30m."

	case strings.Contains(errStr, "cannot unmarshal !!str into"):
		message = "unexpected string value"
		suggestion = "Numbers and booleans must not be quoted."

	case strings.Contains(errStr, "mapping values are not allowed"):
		message = "invalid YAML structure"
		suggestion = "Check for missing colons after keys, or incorrect indentation."

	case strings.Contains(errStr, "found character that cannot start"):
		message = "invalid character in YAML"
		suggestion = "Quote string values that contain special characters like ':', '#' or '{'."

	default:
		message = "invalid YAML syntax"
		suggestion = "Check your YAML syntax. Common issues: incorrect indentation, missing colons, or unquoted special characters."
	}

	context := path
	if _, rest, ok := strings.Cut(errStr, "line "); ok {
		line, _, _ := strings.Cut(rest, ":")
		context = fmt.Sprintf("%s (line %s)", path, line)
	}

	return &UserError{
		Code:       ErrCodeConfigParse,
		Message:    message,
		Context:    context,
		Suggestion: suggestion,
		Underlying: err,
	}
}

// NewTOMLParseError translates go-toml decoder errors into user-friendly messages.
func NewTOMLParseError(path string, err error) *UserError {
	ue := &UserError{
		Code:       ErrCodeConfigParse,
		Message:    "invalid TOML syntax",
		Context:    path,
		Suggestion: "Check your TOML syntax: keys are 'name = value' and sections are '[section]'.",
		Underlying: err,
	}

	var decodeErr *toml.DecodeError
	var strictErr *toml.StrictMissingError
	switch {
	case errors.As(err, &decodeErr):
		row, col := decodeErr.Position()
		ue.Context = fmt.Sprintf("%s (line %d, column %d)", path, row, col)
	case errors.As(err, &strictErr):
		ue.Message = "unknown configuration key"
		ue.Suggestion = "Check the key name for typos; see the example configuration in the README."
		if len(strictErr.Errors) > 0 {
			row, _ := strictErr.Errors[0].Position()
			ue.Context = fmt.Sprintf("%s (line %d)", path, row)
		}
	case strings.Contains(err.Error(), "invalid duration"):
		ue.Message = "invalid duration"
		ue.Suggestion = "Durations are written like \"30s\", \"5m\" or \"1h30m\"."
	}

	return ue
}
