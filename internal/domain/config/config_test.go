package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	d := cfg.Descriptor()
	assert.Equal(t, "node_exporter", d.Service)
	assert.Equal(t, "1.8.1", d.Version)
	assert.Equal(t, "/usr/local/bin/node_exporter", d.BinaryPath)
	assert.Equal(t, "/etc/node_exporter/node_exporter.yml", d.ConfigFile)
	assert.Equal(t, "/etc/systemd/system/node_exporter.service", d.UnitPath)
	assert.Equal(t, DefaultWorkDir, d.WorkDir)
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.Download.Std())
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Service.Std())
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Command.Std())
	assert.Equal(t, 10*time.Minute, cfg.LogWindow.Std())
	assert.True(t, cfg.Metrics.Textfile)
	assert.Empty(t, cfg.Source())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"sudo", func(c *Config) { c.Sudo = "maybe" }, "sudo"},
		{"backend", func(c *Config) { c.Backend = "upstart" }, "backend"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"timeout", func(c *Config) { c.Timeouts.Download = 0 }, "timeouts.download"},
		{"log window", func(c *Config) { c.LogWindow = -1 }, "log_window"},
		{"retries", func(c *Config) { c.Download.Retries = 0 }, "download.retries"},
		{"editor", func(c *Config) { c.Editor = "vim; id" }, "editor"},
		{"version", func(c *Config) { c.Service.Version = "v1.8.1" }, "service.version"},
		{"binary", func(c *Config) { c.Paths.Binary = "node_exporter" }, "paths.binary"},
		{"url", func(c *Config) { c.Download.URL = "https://example.com/x.tar.gz" }, "download.url"},
		{"config file outside dir", func(c *Config) { c.Paths.ConfigFile = "/etc/other/node_exporter.yml" }, "paths.config_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, ErrCodeValidationFailed, codeOf(err))

			var found bool
			list, ok := err.(*ErrorList)
			require.True(t, ok)
			for _, ue := range list.Errors() {
				if ue.Context == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected an error for %s, got: %v", tt.field, err)
		})
	}
}

func TestConfig_ValidateSuggestions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Service.Arch = "x86_64"

	err := cfg.Validate()
	require.Error(t, err)
	ue := GetUserError(err)
	require.NotNil(t, ue)
	assert.Equal(t, "service.arch", ue.Context)
	assert.Contains(t, ue.Suggestion, "amd64")
}

func TestConfig_DescriptorCopiesFlags(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Service.ExtraFlags = []string{"--collector.systemd"}

	d := cfg.Descriptor()
	d.ExtraFlags[0] = "--mutated"
	assert.Equal(t, "--collector.systemd", cfg.Service.ExtraFlags[0])
}

func TestDuration_UnmarshalText(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())
	assert.Equal(t, "1m30s", d.String())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
