package app

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/descriptor"
	"github.com/felixgeelhaar/nodeexpoctor/internal/provider/exporter"
	"github.com/felixgeelhaar/nodeexpoctor/internal/provider/versionutil"
)

// OSReleasePath is read for host facts.
const OSReleasePath = "/etc/os-release"

// BuildInfo identifies the nodeexpoctor binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// OSInfo holds the /etc/os-release fields the report shows.
type OSInfo struct {
	PrettyName string
	ID         string
	VersionID  string
}

// VersionReport is the result of VersionChecker.Check.
type VersionReport struct {
	Build     BuildInfo
	Pinned    string
	Installed string
	Verdict   versionutil.Verdict
	OS        OSInfo
	Machine   string
	// Arch is the release architecture the descriptor downloads.
	Arch string
	// ArchMismatch is set when Machine maps to a different release
	// architecture than Arch.
	ArchMismatch bool
	// Errors holds facts that could not be collected.
	Errors []error
}

// machineArch maps uname -m onto release architectures.
var machineArch = map[string]string{
	"x86_64":  "amd64",
	"amd64":   "amd64",
	"aarch64": "arm64",
	"arm64":   "arm64",
	"armv7l":  "armv7",
	"armv6l":  "armv6",
	"i686":    "386",
	"i386":    "386",
	"ppc64le": "ppc64le",
	"s390x":   "s390x",
	"riscv64": "riscv64",
}

// VersionChecker compares the installed exporter with the pinned release
// and collects host facts.
type VersionChecker struct {
	env   *exporter.Env
	build BuildInfo
}

// NewVersionChecker creates a VersionChecker.
func NewVersionChecker(env *exporter.Env, build BuildInfo) *VersionChecker {
	return &VersionChecker{env: env, build: build}
}

// Check builds the report. Missing facts are recorded in Errors.
func (c *VersionChecker) Check(ctx context.Context, d descriptor.Descriptor) VersionReport {
	report := VersionReport{
		Build:  c.build,
		Pinned: d.Version,
		Arch:   d.Arch,
	}

	installed, err := c.env.InstalledVersion(ctx, d.BinaryPath)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("installed version: %w", err))
	}
	report.Installed = installed
	report.Verdict = versionutil.Compare(d.Version, installed)

	osInfo, err := c.osRelease()
	if err != nil {
		report.Errors = append(report.Errors, err)
	}
	report.OS = osInfo

	machine, err := c.machine(ctx)
	if err != nil {
		report.Errors = append(report.Errors, err)
	}
	report.Machine = machine
	if arch, ok := machineArch[machine]; ok {
		report.ArchMismatch = arch != d.Arch
	}

	return report
}

func (c *VersionChecker) osRelease() (OSInfo, error) {
	data, err := c.env.FS.ReadFile(OSReleasePath)
	if err != nil {
		return OSInfo{}, fmt.Errorf("failed to read %s: %w", OSReleasePath, err)
	}
	return ParseOSRelease(data)
}

func (c *VersionChecker) machine(ctx context.Context) (string, error) {
	result, err := c.env.Runner.Run(ctx, "uname", "-m")
	if err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	if !result.Success() {
		return "", fmt.Errorf("uname exited with %d", result.ExitCode)
	}
	return strings.TrimSpace(result.Stdout), nil
}

// ParseOSRelease parses os-release(5) content.
func ParseOSRelease(data []byte) (OSInfo, error) {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return OSInfo{}, fmt.Errorf("failed to parse %s: %w", OSReleasePath, err)
	}

	sec := f.Section(ini.DefaultSection)
	value := func(key string) string {
		return strings.Trim(sec.Key(key).String(), `"'`)
	}
	return OSInfo{
		PrettyName: value("PRETTY_NAME"),
		ID:         value("ID"),
		VersionID:  value("VERSION_ID"),
	}, nil
}

// Version reports the tool build, the pinned and installed exporter
// versions and host facts.
func (a *App) Version(ctx context.Context) VersionReport {
	return a.versions.Check(ctx, a.desc)
}
