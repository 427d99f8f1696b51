package exporter

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/descriptor"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
)

// Install step IDs, in execution order.
var (
	IDUser        = step.MustNewID("install:user")
	IDDirectories = step.MustNewID("install:directories")
	IDFetch       = step.MustNewID("install:fetch")
	IDExtract     = step.MustNewID("install:extract")
	IDBinary      = step.MustNewID("install:binary")
	IDConfig      = step.MustNewID("install:config")
	IDUnit        = step.MustNewID("install:unit")
	IDService     = step.MustNewID("install:service")
)

const (
	nologinShell = "/usr/sbin/nologin"
	docsURL      = "https://github.com/prometheus/node_exporter"
)

// Exit codes of the shadow-utils tools.
const (
	exitAccountExists  = 9
	exitAccountMissing = 6
	exitGroupInUse     = 8
	exitNoSuchUser     = 1
	exitNoSuchGroup    = 2
)

// base carries what every step shares.
type base struct {
	id        step.ID
	deps      []step.ID
	d         descriptor.Descriptor
	env       *Env
	condition step.Kind
}

// ID returns the step identifier.
func (b *base) ID() step.ID {
	return b.id
}

// DependsOn returns the step dependencies.
func (b *base) DependsOn() []step.ID {
	return b.deps
}

// RequiresPrivilege reports whether Apply needs root.
func (b *base) RequiresPrivilege() bool {
	return true
}

// SatisfiedCondition returns the condition observed by the last Check.
func (b *base) SatisfiedCondition() step.Kind {
	return b.condition
}

func (b *base) satisfied(kind step.Kind) (step.Status, error) {
	b.condition = kind
	return step.StatusSatisfied, nil
}

// pending records which later steps must restart the service.
type pending struct {
	binary bool
	unit   bool
}

// UserStep ensures the service account and its primary group exist.
type UserStep struct {
	base
}

// NewUserStep creates a new UserStep.
func NewUserStep(d descriptor.Descriptor, env *Env) *UserStep {
	return &UserStep{base{id: IDUser, d: d, env: env}}
}

// Check determines if the user already exists.
func (s *UserStep) Check(ctx step.RunContext) (step.Status, error) {
	exists, err := userExists(ctx, s.env, s.d.User)
	if err != nil {
		return step.StatusUnknown, err
	}
	if exists {
		return s.satisfied(step.KindAlreadyExists)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *UserStep) Plan(_ step.RunContext) (step.Diff, error) {
	return step.NewDiff(step.ChangeCreate, "user", s.d.User, "", "system user in group "+s.d.Group), nil
}

// Apply creates the group if needed and then the user.
func (s *UserStep) Apply(ctx step.RunContext) error {
	c := ctx.Context()
	timeout := s.env.Timeouts.Command

	result, err := s.env.probe(c, s.env.Runner, timeout, "getent", "group", s.d.Group)
	if err != nil {
		return err
	}
	switch result.ExitCode {
	case 0:
	case exitNoSuchGroup:
		args := []string{"--system", s.d.Group}
		result, err = s.env.probe(c, s.env.Privileged, timeout, "groupadd", args...)
		if err != nil {
			return err
		}
		if !result.Success() && result.ExitCode != exitAccountExists {
			return step.CommandError("groupadd", args, result)
		}
	default:
		return step.CommandError("getent", []string{"group", s.d.Group}, result)
	}

	args := []string{"--system", "--no-create-home", "--shell", nologinShell, "-g", s.d.Group, s.d.User}
	result, err = s.env.probe(c, s.env.Privileged, timeout, "useradd", args...)
	if err != nil {
		return err
	}
	if result.ExitCode == exitAccountExists {
		return step.CommandError("useradd", args, result).WithKind(step.KindAlreadyExists)
	}
	if !result.Success() {
		return step.CommandError("useradd", args, result)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *UserStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Create service user",
		fmt.Sprintf("Creates the system user %s (no home directory, no login shell) that runs the exporter.", s.d.User),
	)
}

// DirectoriesStep ensures the config, data and textfile directories exist
// and belong to the service user.
type DirectoriesStep struct {
	base
	todo []string
}

// NewDirectoriesStep creates a new DirectoriesStep.
func NewDirectoriesStep(d descriptor.Descriptor, env *Env) *DirectoriesStep {
	return &DirectoriesStep{base: base{id: IDDirectories, deps: []step.ID{IDUser}, d: d, env: env}}
}

// Check stats every directory and compares its owner.
func (s *DirectoriesStep) Check(ctx step.RunContext) (step.Status, error) {
	s.todo = nil
	for _, dir := range s.d.Directories() {
		args := []string{"-c", "%U:%G", dir}
		result, err := s.env.probe(ctx.Context(), s.env.Runner, s.env.Timeouts.Command, "stat", args...)
		if err != nil {
			return step.StatusUnknown, err
		}
		if !result.Success() {
			if step.Classify(result) != step.KindNotFound {
				return step.StatusUnknown, step.CommandError("stat", args, result)
			}
			s.todo = append(s.todo, dir)
			continue
		}
		if strings.TrimSpace(result.Stdout) != s.d.Owner() {
			s.todo = append(s.todo, dir)
		}
	}
	if len(s.todo) == 0 {
		return s.satisfied(step.KindAlreadyExists)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *DirectoriesStep) Plan(_ step.RunContext) (step.Diff, error) {
	return step.NewDiff(step.ChangeCreate, "directory", strings.Join(s.todo, " "), "", s.d.Owner()+" 0755"), nil
}

// Apply creates the directories with the service user as owner.
func (s *DirectoriesStep) Apply(ctx step.RunContext) error {
	dirs := s.todo
	if len(dirs) == 0 {
		dirs = s.d.Directories()
	}
	args := append([]string{"-d", "-o", s.d.User, "-g", s.d.Group, "-m", "0755"}, dirs...)
	_, err := s.env.run(ctx.Context(), s.env.Privileged, s.env.Timeouts.Command, "install", args...)
	return err
}

// Explain provides a human-readable explanation.
func (s *DirectoriesStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Create directories",
		fmt.Sprintf("Creates %s owned by %s.", strings.Join(s.d.Directories(), ", "), s.d.Owner()),
	)
}

// FetchStep downloads the release tarball into the work directory.
type FetchStep struct {
	base
}

// NewFetchStep creates a new FetchStep.
func NewFetchStep(d descriptor.Descriptor, env *Env) *FetchStep {
	return &FetchStep{base{id: IDFetch, d: d, env: env}}
}

// RequiresPrivilege reports false: the download lands in the work directory.
func (s *FetchStep) RequiresPrivilege() bool {
	return false
}

// Check is satisfied when the archive is present or the pinned version is
// already installed.
func (s *FetchStep) Check(ctx step.RunContext) (step.Status, error) {
	installed, err := s.env.InstalledVersion(ctx.Context(), s.d.BinaryPath)
	if err != nil {
		return step.StatusUnknown, err
	}
	if installed == s.d.Version || s.env.FS.Exists(s.d.ArchivePath()) {
		return s.satisfied(step.KindAlreadyExists)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *FetchStep) Plan(_ step.RunContext) (step.Diff, error) {
	return step.NewDiff(step.ChangeCreate, "archive", s.d.ArchivePath(), "", s.d.DownloadURL()), nil
}

// Apply downloads to a partial file and renames it once complete. Any
// failure removes the partial file.
func (s *FetchStep) Apply(ctx step.RunContext) error {
	if err := s.env.FS.MkdirAll(s.d.WorkDir, 0o755); err != nil {
		return fsError("create work directory", s.d.WorkDir, err)
	}

	part := s.d.PartialArchivePath()
	_ = s.env.FS.Remove(part)

	retries := s.env.Retries
	if retries < 1 {
		retries = 1
	}
	readTimeout := int(s.env.Timeouts.Command.Seconds())
	if readTimeout < 1 {
		readTimeout = 1
	}

	_, err := s.env.run(ctx.Context(), s.env.Runner, s.env.Timeouts.Download, "wget",
		"--quiet",
		"--tries="+strconv.Itoa(retries),
		"--timeout="+strconv.Itoa(readTimeout),
		"-O", part,
		s.d.DownloadURL(),
	)
	if err != nil {
		_ = s.env.FS.Remove(part)
		return s.downloadError(err)
	}

	if err := s.env.FS.Rename(part, s.d.ArchivePath()); err != nil {
		_ = s.env.FS.Remove(part)
		return fsError("rename", part, err)
	}
	return nil
}

func (s *FetchStep) downloadError(err error) error {
	var se *step.StepError
	if !errors.As(err, &se) {
		return err
	}
	if se.Kind == step.KindPrivilege || se.Kind == step.KindInterrupted {
		return se
	}

	e := se.WithKind(step.KindNetwork)
	e.Code = step.ErrCodeDownloadFailed
	e.Message = "download failed"
	host := s.d.DownloadURL()
	if u, perr := url.Parse(host); perr == nil {
		host = u.Host
	}
	return e.WithSuggestion(fmt.Sprintf(
		"Check network access to %s, or point download.url at a reachable mirror.", host))
}

// Explain provides a human-readable explanation.
func (s *FetchStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Download release",
		fmt.Sprintf("Downloads node_exporter %s for linux-%s from %s.", s.d.Version, s.d.Arch, s.d.DownloadURL()),
		docsURL+"/releases",
	)
}

// ExtractStep unpacks the release tarball in the work directory.
type ExtractStep struct {
	base
}

// NewExtractStep creates a new ExtractStep.
func NewExtractStep(d descriptor.Descriptor, env *Env) *ExtractStep {
	return &ExtractStep{base{id: IDExtract, deps: []step.ID{IDFetch}, d: d, env: env}}
}

// RequiresPrivilege reports false: extraction happens in the work directory.
func (s *ExtractStep) RequiresPrivilege() bool {
	return false
}

// Check is satisfied when the extracted binary exists or the pinned
// version is already installed.
func (s *ExtractStep) Check(ctx step.RunContext) (step.Status, error) {
	if s.env.FS.Exists(s.d.ExtractedBinary()) {
		return s.satisfied(step.KindAlreadyExists)
	}
	installed, err := s.env.InstalledVersion(ctx.Context(), s.d.BinaryPath)
	if err != nil {
		return step.StatusUnknown, err
	}
	if installed == s.d.Version {
		return s.satisfied(step.KindAlreadyExists)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *ExtractStep) Plan(_ step.RunContext) (step.Diff, error) {
	return step.NewDiff(step.ChangeCreate, "directory", s.d.ExtractDir(), "", "extracted from "+s.d.ReleaseName()+".tar.gz"), nil
}

// Apply runs tar. A corrupt archive is deleted so the next run downloads
// it again.
func (s *ExtractStep) Apply(ctx step.RunContext) error {
	_, err := s.env.run(ctx.Context(), s.env.Runner, s.env.Timeouts.Command,
		"tar", "-xzf", s.d.ArchivePath(), "-C", s.d.WorkDir)
	if err != nil {
		var se *step.StepError
		if errors.As(err, &se) && se.Kind == step.KindProcess {
			_ = s.env.FS.Remove(s.d.ArchivePath())
			return se.WithSuggestion("The archive was corrupt and has been deleted; run install again to download it.")
		}
		return err
	}

	if !s.env.FS.Exists(s.d.ExtractedBinary()) {
		return step.NewError(step.ErrCodeNotFound, step.KindNotFound,
			fmt.Sprintf("archive did not contain %s", s.d.ExtractedBinary())).
			WithSuggestion("Check that the artifact name matches the release tarball.")
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *ExtractStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Extract release",
		fmt.Sprintf("Unpacks %s into %s.", s.d.ArchivePath(), s.d.WorkDir),
	)
}

// BinaryStep installs the exporter binary.
type BinaryStep struct {
	base
	pending   *pending
	installed string
}

// NewBinaryStep creates a new BinaryStep.
func NewBinaryStep(d descriptor.Descriptor, env *Env, p *pending) *BinaryStep {
	return &BinaryStep{base: base{id: IDBinary, deps: []step.ID{IDExtract, IDUser}, d: d, env: env}, pending: p}
}

// Check is satisfied when the installed binary reports the pinned version.
func (s *BinaryStep) Check(ctx step.RunContext) (step.Status, error) {
	installed, err := s.env.InstalledVersion(ctx.Context(), s.d.BinaryPath)
	if err != nil {
		return step.StatusUnknown, err
	}
	s.installed = installed
	if installed == s.d.Version {
		return s.satisfied(step.KindAlreadyExists)
	}
	s.pending.binary = true
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *BinaryStep) Plan(_ step.RunContext) (step.Diff, error) {
	if s.installed == "" {
		return step.NewDiff(step.ChangeCreate, "binary", s.d.BinaryPath, "", s.d.Version), nil
	}
	return step.NewDiff(step.ChangeUpdate, "binary", s.d.BinaryPath, s.installed, s.d.Version), nil
}

// Apply installs the extracted binary owned by the service user. Only the
// binary itself is chowned, never its directory.
func (s *BinaryStep) Apply(ctx step.RunContext) error {
	_, err := s.env.run(ctx.Context(), s.env.Privileged, s.env.Timeouts.Command,
		"install", "-o", s.d.User, "-g", s.d.Group, "-m", "0755", s.d.ExtractedBinary(), s.d.BinaryPath)
	return err
}

// Explain provides a human-readable explanation.
func (s *BinaryStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Install binary",
		fmt.Sprintf("Installs node_exporter %s at %s.", s.d.Version, s.d.BinaryPath),
	)
}

// ConfigStep writes a default web configuration file. An existing file is
// never overwritten.
type ConfigStep struct {
	base
}

// NewConfigStep creates a new ConfigStep.
func NewConfigStep(d descriptor.Descriptor, env *Env) *ConfigStep {
	return &ConfigStep{base{id: IDConfig, deps: []step.ID{IDDirectories}, d: d, env: env}}
}

// Check is satisfied when the config file exists.
func (s *ConfigStep) Check(_ step.RunContext) (step.Status, error) {
	if s.env.FS.Exists(s.d.ConfigFile) {
		return s.satisfied(step.KindAlreadyExists)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *ConfigStep) Plan(_ step.RunContext) (step.Diff, error) {
	data, err := descriptor.DefaultWebConfig()
	if err != nil {
		return step.Diff{}, err
	}
	return step.NewFileDiff("web config", s.d.ConfigFile, nil, data), nil
}

// Apply installs the default config readable by the service user only.
func (s *ConfigStep) Apply(ctx step.RunContext) error {
	data, err := descriptor.DefaultWebConfig()
	if err != nil {
		return step.NewError(step.ErrCodeRenderFailed, step.KindProcess, err.Error())
	}
	return s.env.stage(ctx.Context(), s.d.WorkDir, data, s.d.ConfigFile, s.d.User, s.d.Group, "0640")
}

// Explain provides a human-readable explanation.
func (s *ConfigStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Write web config",
		fmt.Sprintf("Writes a default web configuration to %s; edit it with 'nodeexpoctor edit-config'.", s.d.ConfigFile),
		"https://github.com/prometheus/exporter-toolkit/blob/master/docs/web-configuration.md",
	)
}

// UnitStep renders and installs the systemd unit file.
type UnitStep struct {
	base
	pending *pending
	current []byte
}

// NewUnitStep creates a new UnitStep.
func NewUnitStep(d descriptor.Descriptor, env *Env, p *pending) *UnitStep {
	return &UnitStep{base: base{id: IDUnit, d: d, env: env}, pending: p}
}

// Check is satisfied when the on-disk unit carries the rendered options.
func (s *UnitStep) Check(_ step.RunContext) (step.Status, error) {
	s.current = nil
	data, err := s.env.FS.ReadFile(s.d.UnitPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.pending.unit = true
			return step.StatusNeedsApply, nil
		}
		return step.StatusUnknown, fsError("read", s.d.UnitPath, err)
	}
	s.current = data

	match, err := s.d.UnitMatches(data)
	if err == nil && match {
		return s.satisfied(step.KindAlreadyExists)
	}
	s.pending.unit = true
	return step.StatusNeedsApply, nil
}

// Plan returns a unified diff of the unit file.
func (s *UnitStep) Plan(_ step.RunContext) (step.Diff, error) {
	rendered, err := s.d.RenderUnit()
	if err != nil {
		return step.Diff{}, err
	}

	return step.NewFileDiff("unit", s.d.UnitPath, s.current, rendered), nil
}

// Apply installs the rendered unit file with mode 0644.
func (s *UnitStep) Apply(ctx step.RunContext) error {
	rendered, err := s.d.RenderUnit()
	if err != nil {
		return step.NewError(step.ErrCodeRenderFailed, step.KindProcess, err.Error())
	}
	return s.env.stage(ctx.Context(), s.d.WorkDir, rendered, s.d.UnitPath, "root", "root", "0644")
}

// Explain provides a human-readable explanation.
func (s *UnitStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Write unit file",
		fmt.Sprintf("Writes %s running: %s", s.d.UnitPath, s.d.ExecStart()),
		"https://www.freedesktop.org/software/systemd/man/systemd.service.html",
	)
}

// ServiceStep reloads systemd, enables the unit and starts it, restarting
// a running service when the binary or unit changed.
type ServiceStep struct {
	base
	pending *pending
	active  bool
	enabled bool
}

// NewServiceStep creates a new ServiceStep.
func NewServiceStep(d descriptor.Descriptor, env *Env, p *pending) *ServiceStep {
	return &ServiceStep{
		base:    base{id: IDService, deps: []step.ID{IDBinary, IDConfig, IDUnit, IDDirectories}, d: d, env: env},
		pending: p,
	}
}

// Check is satisfied when the unit is enabled and running the current
// binary and unit file.
func (s *ServiceStep) Check(ctx step.RunContext) (step.Status, error) {
	state, err := s.env.Services.State(ctx.Context(), s.d.UnitName())
	if err != nil {
		return step.StatusUnknown, err
	}
	s.active = state.Active()
	s.enabled = state.Enabled()

	if s.pending.binary || s.pending.unit || state.NeedsReload {
		return step.StatusNeedsApply, nil
	}
	if state.Loaded() && s.active && s.enabled {
		return s.satisfied(step.KindAlreadyExists)
	}
	return step.StatusNeedsApply, nil
}

// Plan returns the diff for this step.
func (s *ServiceStep) Plan(_ step.RunContext) (step.Diff, error) {
	action := "start"
	if s.active {
		action = "restart"
	}
	return step.NewDiff(step.ChangeUpdate, "service", s.d.UnitName(),
		describeState(s.active, s.enabled), "active, enabled ("+action+")"), nil
}

// Apply reloads systemd, enables the unit and starts or restarts it, then
// verifies that it is active.
func (s *ServiceStep) Apply(ctx step.RunContext) error {
	c := ctx.Context()
	svc := s.env.Services
	name := s.d.UnitName()

	if err := svc.Reload(c); err != nil {
		return err
	}
	if err := svc.Enable(c, name); err != nil {
		return err
	}
	start := svc.Start
	if s.active {
		start = svc.Restart
	}
	if err := start(c, name); err != nil {
		return asStepError(err).WithSuggestion("Run 'nodeexpoctor status' to see the unit's recent log.")
	}

	state, err := svc.State(c, name)
	if err != nil {
		return err
	}
	if !state.Active() {
		return step.NewError(step.ErrCodeApplyFailed, step.KindProcess,
			fmt.Sprintf("%s is %s after start", name, state.ActiveState)).
			WithSuggestion("Run 'nodeexpoctor status' to see the unit's recent log.")
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *ServiceStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Enable and start service",
		fmt.Sprintf("Reloads systemd, enables %s at boot and starts it.", s.d.UnitName()),
	)
}

func describeState(active, enabled bool) string {
	a, e := "inactive", "disabled"
	if active {
		a = "active"
	}
	if enabled {
		e = "enabled"
	}
	return a + ", " + e
}

// userExists runs id -u.
func userExists(ctx step.RunContext, env *Env, user string) (bool, error) {
	args := []string{"-u", user}
	result, err := env.probe(ctx.Context(), env.Runner, env.Timeouts.Command, "id", args...)
	if err != nil {
		return false, err
	}
	switch result.ExitCode {
	case 0:
		return true, nil
	case exitNoSuchUser:
		return false, nil
	}
	return false, step.CommandError("id", args, result)
}

// asStepError returns err as a *step.StepError, wrapping it if needed.
func asStepError(err error) *step.StepError {
	var se *step.StepError
	if errors.As(err, &se) {
		return se
	}
	return &step.StepError{Code: step.ErrCodeApplyFailed, Kind: step.KindOf(err), Message: err.Error(), Underlying: err}
}
