// Package config loads the optional operator configuration file and turns
// it into a service descriptor and run settings.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/descriptor"
	"github.com/felixgeelhaar/nodeexpoctor/internal/validation"
)

// Sudo modes.
const (
	SudoAuto   = "auto"
	SudoAlways = "always"
	SudoNever  = "never"
)

// Service manager backends.
const (
	BackendSystemctl = "systemctl"
	BackendDBus      = "dbus"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Default timeouts and windows.
const (
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultServiceTimeout  = 60 * time.Second
	DefaultCommandTimeout  = 30 * time.Second
	DefaultLogWindow       = 10 * time.Minute
	DefaultWorkDir         = "/var/tmp/nodeexpoctor"
	DefaultEditor          = "nano"
)

// Duration is a time.Duration written as "30s" or "5m" in config files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration in Go notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler (used by TOML).
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: invalid duration: expected a string like 30s", value.Line)
	}
	if err := d.UnmarshalText([]byte(value.Value)); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	return nil
}

// ServiceConfig describes the managed exporter.
type ServiceConfig struct {
	Name          string   `yaml:"name" toml:"name"`
	User          string   `yaml:"user" toml:"user"`
	Group         string   `yaml:"group" toml:"group"`
	Version       string   `yaml:"version" toml:"version"`
	Arch          string   `yaml:"arch" toml:"arch"`
	ListenAddress string   `yaml:"listen_address" toml:"listen_address"`
	ExtraFlags    []string `yaml:"extra_flags" toml:"extra_flags"`
}

// PathsConfig overrides installation paths.
type PathsConfig struct {
	Binary      string `yaml:"binary" toml:"binary"`
	ConfigDir   string `yaml:"config_dir" toml:"config_dir"`
	ConfigFile  string `yaml:"config_file" toml:"config_file"`
	DataDir     string `yaml:"data_dir" toml:"data_dir"`
	TextfileDir string `yaml:"textfile_dir" toml:"textfile_dir"`
	UnitFile    string `yaml:"unit_file" toml:"unit_file"`
	WorkDir     string `yaml:"work_dir" toml:"work_dir"`
}

// DownloadConfig controls artifact retrieval.
type DownloadConfig struct {
	URL     string `yaml:"url" toml:"url"`
	Retries int    `yaml:"retries" toml:"retries"`
}

// TimeoutsConfig bounds external calls.
type TimeoutsConfig struct {
	Download Duration `yaml:"download" toml:"download"`
	Service  Duration `yaml:"service" toml:"service"`
	Command  Duration `yaml:"command" toml:"command"`
}

// LoggingConfig controls the console logger.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig controls run metrics.
type MetricsConfig struct {
	Textfile bool `yaml:"textfile" toml:"textfile"`
}

// Config is the operator configuration. Every field has a default.
type Config struct {
	Service   ServiceConfig  `yaml:"service" toml:"service"`
	Paths     PathsConfig    `yaml:"paths" toml:"paths"`
	Download  DownloadConfig `yaml:"download" toml:"download"`
	Timeouts  TimeoutsConfig `yaml:"timeouts" toml:"timeouts"`
	Logging   LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Editor    string         `yaml:"editor" toml:"editor"`
	LogWindow Duration       `yaml:"log_window" toml:"log_window"`
	Sudo      string         `yaml:"sudo" toml:"sudo"`
	Backend   string         `yaml:"backend" toml:"backend"`

	source string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:          descriptor.DefaultService,
			User:          descriptor.DefaultUser,
			Group:         descriptor.DefaultGroup,
			Version:       descriptor.DefaultVersion,
			Arch:          descriptor.DefaultArch,
			ListenAddress: descriptor.DefaultListenAddress,
		},
		Paths: PathsConfig{
			Binary:      descriptor.DefaultBinaryPath,
			ConfigDir:   descriptor.DefaultConfigDir,
			ConfigFile:  descriptor.DefaultConfigFile,
			DataDir:     descriptor.DefaultDataDir,
			TextfileDir: descriptor.DefaultTextfileDir,
			UnitFile:    descriptor.DefaultUnitPath,
			WorkDir:     DefaultWorkDir,
		},
		Download: DownloadConfig{
			URL:     descriptor.DefaultURLTemplate,
			Retries: 3,
		},
		Timeouts: TimeoutsConfig{
			Download: Duration(DefaultDownloadTimeout),
			Service:  Duration(DefaultServiceTimeout),
			Command:  Duration(DefaultCommandTimeout),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: LogFormatText,
		},
		Metrics: MetricsConfig{
			Textfile: true,
		},
		LogWindow: Duration(DefaultLogWindow),
		Sudo:      SudoAuto,
		Backend:   BackendSystemctl,
	}
}

// Source returns the file the configuration was loaded from, or "" for defaults.
func (c *Config) Source() string {
	return c.source
}

// Descriptor builds the service descriptor.
func (c *Config) Descriptor() descriptor.Descriptor {
	flags := make([]string, len(c.Service.ExtraFlags))
	copy(flags, c.Service.ExtraFlags)

	return descriptor.Descriptor{
		Service:       c.Service.Name,
		Artifact:      descriptor.DefaultArtifact,
		User:          c.Service.User,
		Group:         c.Service.Group,
		Version:       c.Service.Version,
		Arch:          c.Service.Arch,
		BinaryPath:    c.Paths.Binary,
		ConfigDir:     c.Paths.ConfigDir,
		ConfigFile:    c.Paths.ConfigFile,
		DataDir:       c.Paths.DataDir,
		TextfileDir:   c.Paths.TextfileDir,
		UnitPath:      c.Paths.UnitFile,
		URLTemplate:   c.Download.URL,
		WorkDir:       c.Paths.WorkDir,
		ListenAddress: c.Service.ListenAddress,
		ExtraFlags:    flags,
	}
}

// Validate checks the configuration and returns an *ErrorList of every problem.
func (c *Config) Validate() error {
	list := NewErrorList()

	if err := c.Descriptor().Validate(); err != nil {
		for _, e := range flatten(err) {
			var fe *descriptor.FieldError
			if errors.As(e, &fe) {
				list.AddValidation(configKey(fe.Field), fe.Err.Error(), suggestionFor(fe.Err))
				continue
			}
			list.AddValidation("service", e.Error(), "")
		}
	}

	if c.Paths.ConfigFile != "" && c.Paths.ConfigDir != "" &&
		filepath.Dir(c.Paths.ConfigFile) != filepath.Clean(c.Paths.ConfigDir) {
		list.AddValidation("paths.config_file", "must be inside paths.config_dir",
			"Place the web config file directly inside the config directory.")
	}

	checkPositive := func(field string, d Duration) {
		if d <= 0 {
			list.AddValidation(field, "must be greater than zero", "Use a duration like 30s or 5m.")
		}
	}
	checkPositive("timeouts.download", c.Timeouts.Download)
	checkPositive("timeouts.service", c.Timeouts.Service)
	checkPositive("timeouts.command", c.Timeouts.Command)
	checkPositive("log_window", c.LogWindow)

	if c.Download.Retries < 1 || c.Download.Retries > 10 {
		list.AddValidation("download.retries", "must be between 1 and 10", "")
	}

	switch c.Sudo {
	case SudoAuto, SudoAlways, SudoNever:
	default:
		list.AddValidation("sudo", fmt.Sprintf("unknown mode %q", c.Sudo), "Use auto, always or never.")
	}

	switch c.Backend {
	case BackendSystemctl, BackendDBus:
	default:
		list.AddValidation("backend", fmt.Sprintf("unknown backend %q", c.Backend), "Use systemctl or dbus.")
	}

	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		list.AddValidation("logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format), "Use text or json.")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		list.AddValidation("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level), "Use debug, info, warn or error.")
	}

	if c.Editor != "" {
		if err := validation.ValidateEditor(c.Editor); err != nil {
			list.AddValidation("editor", err.Error(), "Set editor to a program name such as nano or vim.")
		}
	}

	return list.AsError()
}

func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// configKey maps a descriptor field onto its configuration key.
func configKey(field string) string {
	switch field {
	case "service":
		return "service.name"
	case "user", "group", "version", "arch", "listen_address", "extra_flags":
		return "service." + field
	case "binary_path":
		return "paths.binary"
	case "unit_path":
		return "paths.unit_file"
	case "config_dir", "config_file", "data_dir", "textfile_dir", "work_dir":
		return "paths." + field
	case "download_url":
		return "download.url"
	}
	return field
}

func suggestionFor(err error) string {
	switch {
	case errors.Is(err, validation.ErrInvalidVersion):
		return "Use a release version without the leading v, e.g. 1.8.1."
	case errors.Is(err, validation.ErrInvalidArch):
		return "Use the Go architecture name from the release tarball, e.g. amd64 or arm64."
	case errors.Is(err, validation.ErrMissingPlaceholder):
		return "Include {version} (and usually {arch}) in the download URL."
	case errors.Is(err, validation.ErrInvalidPath), errors.Is(err, validation.ErrPathTraversal):
		return "Use an absolute path without spaces or '..'."
	case errors.Is(err, validation.ErrInvalidAccountName):
		return "Use a lower-case system account name such as node_exporter."
	case errors.Is(err, validation.ErrInvalidListenAddress):
		return "Use host:port, e.g. :9100 or 127.0.0.1:9100."
	}
	return ""
}
