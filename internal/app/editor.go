package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/config"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/descriptor"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
	"github.com/felixgeelhaar/nodeexpoctor/internal/validation"
)

// EditReport describes an editor session.
type EditReport struct {
	Path   string
	Editor []string
	// Invalid is set when the saved file no longer parses as a web config.
	Invalid error
}

// ConfigEditor opens the exporter's web config in an editor as root.
type ConfigEditor struct {
	fs          ports.FileReader
	interactive ports.InteractiveRunner
	privileged  ports.CommandRunner
	getenv      func(string) string
	configured  string
	timeout     time.Duration
}

// NewConfigEditor creates a ConfigEditor. configured is the editor from
// the configuration file and may be empty.
func NewConfigEditor(fs ports.FileReader, interactive ports.InteractiveRunner, privileged ports.CommandRunner, getenv func(string) string, configured string, timeout time.Duration) *ConfigEditor {
	return &ConfigEditor{
		fs:          fs,
		interactive: interactive,
		privileged:  privileged,
		getenv:      getenv,
		configured:  configured,
		timeout:     timeout,
	}
}

// Editor resolves the editor command: the configured editor, then
// $VISUAL, then $EDITOR, then nano. Values that fail validation are
// passed over.
func (e *ConfigEditor) Editor() []string {
	candidates := []string{e.configured}
	if e.getenv != nil {
		candidates = append(candidates, e.getenv("VISUAL"), e.getenv("EDITOR"))
	}
	for _, c := range candidates {
		if validation.ValidateEditor(c) == nil {
			return strings.Fields(c)
		}
	}
	return []string{config.DefaultEditor}
}

// Edit opens path in the editor and re-reads it afterwards.
func (e *ConfigEditor) Edit(ctx context.Context, path string) (EditReport, error) {
	report := EditReport{Path: path, Editor: e.Editor()}

	if !e.fs.Exists(path) {
		return report, step.NewNotFoundError("config file", path).
			WithSuggestion("Run 'nodeexpoctor install' first to create it.")
	}

	args := append(append([]string(nil), report.Editor[1:]...), path)
	if err := e.interactive.RunInteractive(ctx, report.Editor[0], args...); err != nil {
		se := step.RunError(report.Editor[0], args, err)
		if se.Kind == step.KindProcess {
			se.Message = "editor exited with an error"
			se.Suggestion = "Set 'editor' in the configuration file or $VISUAL to a working editor."
		}
		return report, se
	}

	report.Invalid = e.validate(ctx, path)
	return report, nil
}

// validate reads the file back as root since it is not world-readable.
func (e *ConfigEditor) validate(ctx context.Context, path string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := e.privileged.Run(ctx, "cat", "--", path)
	if err != nil {
		return step.RunError("cat", []string{"--", path}, err)
	}
	if !result.Success() {
		return step.CommandError("cat", []string{"--", path}, result)
	}
	if _, err := descriptor.ParseWebConfig([]byte(result.Stdout)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// EditConfig opens the exporter's web config in an editor.
func (a *App) EditConfig(ctx context.Context) (EditReport, error) {
	report, err := a.editor.Edit(ctx, a.desc.ConfigFile)
	if err == nil && report.Invalid != nil {
		a.logger.Warn(ctx, "web config does not parse", ports.Err(report.Invalid))
	}
	return report, err
}
