package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths are tried in order when no --config is given.
var DefaultSearchPaths = []string{
	"~/.config/nodeexpoctor/config.yaml",
	"~/.config/nodeexpoctor/config.toml",
	"/etc/nodeexpoctor/config.yaml",
	"/etc/nodeexpoctor/config.toml",
}

// Loader loads configuration from the filesystem.
type Loader struct {
	searchPaths []string
}

// NewLoader creates a Loader that searches DefaultSearchPaths.
func NewLoader() *Loader {
	return &Loader{searchPaths: DefaultSearchPaths}
}

// WithSearchPaths returns a Loader that searches the given paths instead.
func (l *Loader) WithSearchPaths(paths ...string) *Loader {
	return &Loader{searchPaths: paths}
}

// Load reads the configuration. An explicit path must exist; with an
// empty path the search paths are tried and defaults are used when none
// exists. Keys absent from the file keep their defaults.
func (l *Loader) Load(path string) (*Config, error) {
	if path == "" {
		found, err := l.search()
		if err != nil {
			return nil, err
		}
		if found == "" {
			cfg := Default()
			return cfg, cfg.Validate()
		}
		path = found
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, NewConfigReadError(path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewConfigNotFoundError(expanded)
		}
		return nil, NewConfigReadError(expanded, err)
	}

	cfg, err := Parse(expanded, data)
	if err != nil {
		return nil, err
	}
	cfg.source = expanded

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (l *Loader) search() (string, error) {
	for _, candidate := range l.searchPaths {
		expanded, err := homedir.Expand(candidate)
		if err != nil {
			continue
		}
		if _, err := os.Stat(expanded); err == nil {
			return expanded, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", NewConfigReadError(expanded, err)
		}
	}
	return "", nil
}

// Parse decodes configuration data on top of the defaults. The format is
// chosen from the file extension of name. Unknown keys are rejected.
func Parse(name string, data []byte) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, NewYAMLParseError(name, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, NewTOMLParseError(name, err)
		}
	default:
		return nil, NewUnsupportedTypeError(name)
	}

	return cfg, nil
}
