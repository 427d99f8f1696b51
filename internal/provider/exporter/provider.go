package exporter

import (
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/descriptor"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
)

// Provider builds fresh step lists for one descriptor. Steps keep state
// between Check and Apply, so every run needs its own list.
type Provider struct {
	d   descriptor.Descriptor
	env *Env
}

// NewProvider creates a new exporter Provider.
func NewProvider(d descriptor.Descriptor, env *Env) *Provider {
	return &Provider{d: d, env: env}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "exporter"
}

// Descriptor returns the descriptor the provider builds steps for.
func (p *Provider) Descriptor() descriptor.Descriptor {
	return p.d
}

// InstallSteps returns the install sequence in execution order.
func (p *Provider) InstallSteps() []step.Step {
	changes := &pending{}
	return []step.Step{
		NewUserStep(p.d, p.env),
		NewDirectoriesStep(p.d, p.env),
		NewFetchStep(p.d, p.env),
		NewExtractStep(p.d, p.env),
		NewBinaryStep(p.d, p.env, changes),
		NewConfigStep(p.d, p.env),
		NewUnitStep(p.d, p.env, changes),
		NewServiceStep(p.d, p.env, changes),
	}
}

// RemoveSteps returns the removal sequence. The service is stopped first;
// the remaining steps do not depend on each other.
func (p *Provider) RemoveSteps() []step.Step {
	steps := []step.Step{
		NewStopServiceStep(p.d, p.env),
		NewRemoveUnitStep(p.d, p.env),
		NewRemovePathStep(IDRemoveBinary, "binary", p.d.BinaryPath, p.d, p.env),
		NewRemovePathStep(IDRemoveConfigDir, "directory", p.d.ConfigDir, p.d, p.env),
		NewRemovePathStep(IDRemoveDataDir, "directory", p.d.DataDir, p.d, p.env),
	}
	if p.d.TextfileDir != "" && !within(p.d.TextfileDir, p.d.DataDir) {
		steps = append(steps, NewRemovePathStep(IDRemoveTextfile, "directory", p.d.TextfileDir, p.d, p.env))
	}
	return append(steps,
		NewRemoveUserStep(p.d, p.env),
		NewRemoveArtifactsStep(p.d, p.env),
	)
}

// within reports whether path lies inside dir.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
