// Package descriptor holds the static description of the managed service:
// names, pinned version, file locations and how its unit file looks.
package descriptor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/nodeexpoctor/internal/validation"
)

// Defaults for a stock node_exporter installation.
const (
	DefaultService       = "node_exporter"
	DefaultArtifact      = "node_exporter"
	DefaultUser          = "node_exporter"
	DefaultGroup         = "node_exporter"
	DefaultVersion       = "1.8.1"
	DefaultArch          = "amd64"
	DefaultBinaryPath    = "/usr/local/bin/node_exporter"
	DefaultConfigDir     = "/etc/node_exporter"
	DefaultConfigFile    = "/etc/node_exporter/node_exporter.yml"
	DefaultDataDir       = "/var/lib/node_exporter"
	DefaultTextfileDir   = "/var/lib/node_exporter/textfile_collector"
	DefaultUnitPath      = "/etc/systemd/system/node_exporter.service"
	DefaultListenAddress = ":9100"
	DefaultURLTemplate   = "https://github.com/prometheus/node_exporter/releases/download/v{version}/node_exporter-{version}.linux-{arch}.tar.gz"
)

// Descriptor is the static record of everything the tool manages for one
// exporter version. It is constant for the duration of a run.
type Descriptor struct {
	Service       string
	Artifact      string
	User          string
	Group         string
	Version       string
	Arch          string
	BinaryPath    string
	ConfigDir     string
	ConfigFile    string
	DataDir       string
	TextfileDir   string
	UnitPath      string
	URLTemplate   string
	WorkDir       string
	ListenAddress string
	ExtraFlags    []string
}

// Default returns the descriptor for a stock installation with the given
// work directory for downloads.
func Default(workDir string) Descriptor {
	return Descriptor{
		Service:       DefaultService,
		Artifact:      DefaultArtifact,
		User:          DefaultUser,
		Group:         DefaultGroup,
		Version:       DefaultVersion,
		Arch:          DefaultArch,
		BinaryPath:    DefaultBinaryPath,
		ConfigDir:     DefaultConfigDir,
		ConfigFile:    DefaultConfigFile,
		DataDir:       DefaultDataDir,
		TextfileDir:   DefaultTextfileDir,
		UnitPath:      DefaultUnitPath,
		URLTemplate:   DefaultURLTemplate,
		WorkDir:       workDir,
		ListenAddress: DefaultListenAddress,
	}
}

// UnitName returns the systemd unit name, e.g. "node_exporter.service".
func (d Descriptor) UnitName() string {
	return d.Service + ".service"
}

// DownloadURL returns the release tarball URL for the pinned version.
func (d Descriptor) DownloadURL() string {
	return validation.ExpandURLTemplate(d.URLTemplate, d.Version, d.Arch)
}

// ReleaseName returns the tarball's top-level directory name,
// e.g. "node_exporter-1.8.1.linux-amd64".
func (d Descriptor) ReleaseName() string {
	return fmt.Sprintf("%s-%s.linux-%s", d.Artifact, d.Version, d.Arch)
}

// ArchivePath returns where the downloaded tarball is stored.
func (d Descriptor) ArchivePath() string {
	return filepath.Join(d.WorkDir, d.ReleaseName()+".tar.gz")
}

// PartialArchivePath returns the in-progress download path.
func (d Descriptor) PartialArchivePath() string {
	return d.ArchivePath() + ".part"
}

// DuplicateArchivePath returns the ".1" copy wget leaves behind when a
// download is repeated without -O.
func (d Descriptor) DuplicateArchivePath() string {
	return d.ArchivePath() + ".1"
}

// ExtractDir returns the directory the tarball unpacks into.
func (d Descriptor) ExtractDir() string {
	return filepath.Join(d.WorkDir, d.ReleaseName())
}

// ExtractedBinary returns the path of the binary inside ExtractDir.
func (d Descriptor) ExtractedBinary() string {
	return filepath.Join(d.ExtractDir(), d.Artifact)
}

// Directories returns the directories created for the service user.
func (d Descriptor) Directories() []string {
	dirs := []string{d.ConfigDir, d.DataDir}
	if d.TextfileDir != "" {
		dirs = append(dirs, d.TextfileDir)
	}
	return dirs
}

// Owner returns "user:group" as printed by stat -c %U:%G.
func (d Descriptor) Owner() string {
	return d.User + ":" + d.Group
}

// ExecStart returns the command line systemd runs.
func (d Descriptor) ExecStart() string {
	args := []string{d.BinaryPath}
	if d.ListenAddress != "" {
		args = append(args, "--web.listen-address="+d.ListenAddress)
	}
	if d.ConfigFile != "" {
		args = append(args, "--web.config.file="+d.ConfigFile)
	}
	if d.TextfileDir != "" {
		args = append(args, "--collector.textfile.directory="+d.TextfileDir)
	}
	args = append(args, d.ExtraFlags...)
	return strings.Join(args, " ")
}

// FieldError reports an invalid descriptor field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Validate checks every field and returns all problems joined.
// Each joined error is a *FieldError.
func (d Descriptor) Validate() error {
	var errs []error
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, &FieldError{Field: field, Err: err})
		}
	}

	check("service", validation.ValidateServiceName(d.Service))
	check("artifact", validation.ValidateServiceName(d.Artifact))
	check("user", validation.ValidateAccountName(d.User))
	check("group", validation.ValidateAccountName(d.Group))
	check("version", validation.ValidateVersion(d.Version))
	check("arch", validation.ValidateArch(d.Arch))
	check("binary_path", validation.ValidateAbsolutePath(d.BinaryPath))
	check("config_dir", validation.ValidateAbsolutePath(d.ConfigDir))
	check("config_file", validation.ValidateAbsolutePath(d.ConfigFile))
	check("data_dir", validation.ValidateAbsolutePath(d.DataDir))
	if d.TextfileDir != "" {
		check("textfile_dir", validation.ValidateAbsolutePath(d.TextfileDir))
	}
	check("unit_path", validation.ValidateAbsolutePath(d.UnitPath))
	check("work_dir", validation.ValidateAbsolutePath(d.WorkDir))
	check("download_url", validation.ValidateURLTemplate(d.URLTemplate))
	check("listen_address", validation.ValidateListenAddress(d.ListenAddress))
	for _, f := range d.ExtraFlags {
		check("extra_flags", validation.ValidateFlag(f))
	}

	if d.UnitPath != "" && filepath.Base(d.UnitPath) != d.UnitName() {
		errs = append(errs, &FieldError{
			Field: "unit_path",
			Err:   fmt.Errorf("%w: file name must be %q", validation.ErrInvalidPath, d.UnitName()),
		})
	}

	return errors.Join(errs...)
}
