package exporter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/descriptor"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
)

// Removal step IDs. Removal steps are independent so that one failure
// does not keep the rest from cleaning up.
var (
	IDRemoveService   = step.MustNewID("remove:service")
	IDRemoveUnit      = step.MustNewID("remove:unit")
	IDRemoveBinary    = step.MustNewID("remove:binary")
	IDRemoveConfigDir = step.MustNewID("remove:config-dir")
	IDRemoveDataDir   = step.MustNewID("remove:data-dir")
	IDRemoveTextfile  = step.MustNewID("remove:textfile-dir")
	IDRemoveUser      = step.MustNewID("remove:user")
	IDRemoveArtifacts = step.MustNewID("remove:artifacts")
)

// StopServiceStep stops and disables the unit.
type StopServiceStep struct {
	base
	active  bool
	enabled bool
}

// NewStopServiceStep creates a new StopServiceStep.
func NewStopServiceStep(d descriptor.Descriptor, env *Env) *StopServiceStep {
	return &StopServiceStep{base: base{id: IDRemoveService, d: d, env: env}}
}

// Check is satisfied when systemd does not know the unit or it is stopped
// and disabled.
func (s *StopServiceStep) Check(ctx step.RunContext) (step.Status, error) {
	state, err := s.env.Services.State(ctx.Context(), s.d.UnitName())
	if err != nil {
		return step.StatusUnknown, err
	}
	s.active = state.Active()
	s.enabled = state.Enabled()
	if !state.Loaded() {
		return s.satisfied(step.KindNotFound)
	}
	if !s.active && !s.enabled {
		return s.satisfied(step.KindNone)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *StopServiceStep) Plan(_ step.RunContext) (step.Diff, error) {
	return step.NewDiff(step.ChangeUpdate, "service", s.d.UnitName(),
		describeState(s.active, s.enabled), "inactive, disabled"), nil
}

// Apply stops the unit if running and disables it if enabled.
func (s *StopServiceStep) Apply(ctx step.RunContext) error {
	c := ctx.Context()
	name := s.d.UnitName()
	if s.active {
		if err := s.env.Services.Stop(c, name); err != nil {
			return err
		}
	}
	if s.enabled {
		if err := s.env.Services.Disable(c, name); err != nil {
			return err
		}
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *StopServiceStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation("Stop service", fmt.Sprintf("Stops and disables %s.", s.d.UnitName()))
}

// RemoveUnitStep deletes the unit file and reloads systemd.
type RemoveUnitStep struct {
	base
}

// NewRemoveUnitStep creates a new RemoveUnitStep.
func NewRemoveUnitStep(d descriptor.Descriptor, env *Env) *RemoveUnitStep {
	return &RemoveUnitStep{base{id: IDRemoveUnit, d: d, env: env}}
}

// Check is satisfied when the unit file is absent.
func (s *RemoveUnitStep) Check(_ step.RunContext) (step.Status, error) {
	if !s.env.FS.Exists(s.d.UnitPath) {
		return s.satisfied(step.KindNotFound)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *RemoveUnitStep) Plan(_ step.RunContext) (step.Diff, error) {
	return step.NewDiff(step.ChangeDelete, "unit", s.d.UnitPath, s.d.UnitName(), ""), nil
}

// Apply removes the unit file and reloads systemd.
func (s *RemoveUnitStep) Apply(ctx step.RunContext) error {
	if _, err := s.env.run(ctx.Context(), s.env.Privileged, s.env.Timeouts.Command, "rm", "-f", "--", s.d.UnitPath); err != nil {
		return err
	}
	return s.env.Services.Reload(ctx.Context())
}

// Explain provides a human-readable explanation.
func (s *RemoveUnitStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation("Remove unit file", fmt.Sprintf("Deletes %s and reloads systemd.", s.d.UnitPath))
}

// RemovePathStep deletes one installed file or directory tree.
type RemovePathStep struct {
	base
	path     string
	resource string
}

// NewRemovePathStep creates a step that removes path.
func NewRemovePathStep(id step.ID, resource, path string, d descriptor.Descriptor, env *Env) *RemovePathStep {
	return &RemovePathStep{base: base{id: id, d: d, env: env}, path: path, resource: resource}
}

// Path returns the path the step removes.
func (s *RemovePathStep) Path() string {
	return s.path
}

// Check is satisfied when the path is absent.
func (s *RemovePathStep) Check(_ step.RunContext) (step.Status, error) {
	if !s.env.FS.Exists(s.path) {
		return s.satisfied(step.KindNotFound)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *RemovePathStep) Plan(_ step.RunContext) (step.Diff, error) {
	return step.NewDiff(step.ChangeDelete, s.resource, s.path, s.path, ""), nil
}

// Apply removes the path recursively.
func (s *RemovePathStep) Apply(ctx step.RunContext) error {
	_, err := s.env.run(ctx.Context(), s.env.Privileged, s.env.Timeouts.Command, "rm", "-rf", "--", s.path)
	return err
}

// Explain provides a human-readable explanation.
func (s *RemovePathStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation("Remove "+s.resource, "Deletes "+s.path+".")
}

// RemoveUserStep deletes the service user and its group.
type RemoveUserStep struct {
	base
}

// NewRemoveUserStep creates a new RemoveUserStep.
func NewRemoveUserStep(d descriptor.Descriptor, env *Env) *RemoveUserStep {
	return &RemoveUserStep{base{id: IDRemoveUser, d: d, env: env}}
}

// Check is satisfied when the user does not exist.
func (s *RemoveUserStep) Check(ctx step.RunContext) (step.Status, error) {
	exists, err := userExists(ctx, s.env, s.d.User)
	if err != nil {
		return step.StatusUnknown, err
	}
	if !exists {
		return s.satisfied(step.KindNotFound)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *RemoveUserStep) Plan(_ step.RunContext) (step.Diff, error) {
	return step.NewDiff(step.ChangeDelete, "user", s.d.User, s.d.User, ""), nil
}

// Apply runs userdel, then groupdel. A group that is already gone or
// still holds other members is left alone.
func (s *RemoveUserStep) Apply(ctx step.RunContext) error {
	c := ctx.Context()
	timeout := s.env.Timeouts.Command

	args := []string{s.d.User}
	result, err := s.env.probe(c, s.env.Privileged, timeout, "userdel", args...)
	if err != nil {
		return err
	}
	switch {
	case result.ExitCode == exitAccountMissing:
		return step.CommandError("userdel", args, result).WithKind(step.KindNotFound)
	case !result.Success():
		return step.CommandError("userdel", args, result)
	}

	groupArgs := []string{s.d.Group}
	result, err = s.env.probe(c, s.env.Privileged, timeout, "groupdel", groupArgs...)
	if err != nil {
		return err
	}
	switch result.ExitCode {
	case 0, exitAccountMissing, exitGroupInUse:
		return nil
	}
	return step.CommandError("groupdel", groupArgs, result).
		WithSuggestion(fmt.Sprintf("The user was removed; delete the group with: sudo groupdel %s", s.d.Group))
}

// Explain provides a human-readable explanation.
func (s *RemoveUserStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation("Remove service user", fmt.Sprintf("Deletes the user %s and group %s.", s.d.User, s.d.Group))
}

// RemoveArtifactsStep deletes downloads and extracted files from the work
// directory.
type RemoveArtifactsStep struct {
	base
	found []string
}

// NewRemoveArtifactsStep creates a new RemoveArtifactsStep.
func NewRemoveArtifactsStep(d descriptor.Descriptor, env *Env) *RemoveArtifactsStep {
	return &RemoveArtifactsStep{base: base{id: IDRemoveArtifacts, d: d, env: env}}
}

// RequiresPrivilege reports false: artifacts live in the work directory.
func (s *RemoveArtifactsStep) RequiresPrivilege() bool {
	return false
}

// Artifacts returns every work-directory path the tool may leave behind.
func (s *RemoveArtifactsStep) Artifacts() []string {
	return []string{
		s.d.ArchivePath(),
		s.d.PartialArchivePath(),
		s.d.DuplicateArchivePath(),
		s.d.ExtractDir(),
	}
}

// Check is satisfied when no artifact remains.
func (s *RemoveArtifactsStep) Check(_ step.RunContext) (step.Status, error) {
	s.found = nil
	for _, p := range s.Artifacts() {
		if s.env.FS.Exists(p) {
			s.found = append(s.found, p)
		}
	}
	if len(s.found) == 0 {
		return s.satisfied(step.KindNotFound)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *RemoveArtifactsStep) Plan(_ step.RunContext) (step.Diff, error) {
	names := make([]string, 0, len(s.found))
	for _, p := range s.found {
		names = append(names, filepath.Base(p))
	}
	return step.NewDiff(step.ChangeDelete, "artifacts", s.d.WorkDir, strings.Join(names, ", "), ""), nil
}

// Apply removes the artifacts found by Check.
func (s *RemoveArtifactsStep) Apply(ctx step.RunContext) error {
	if len(s.found) == 0 {
		return nil
	}
	args := append([]string{"-rf", "--"}, s.found...)
	_, err := s.env.run(ctx.Context(), s.env.Runner, s.env.Timeouts.Command, "rm", args...)
	return err
}

// Explain provides a human-readable explanation.
func (s *RemoveArtifactsStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation("Remove downloads", fmt.Sprintf("Deletes the release archive and extracted files from %s.", s.d.WorkDir))
}
