package descriptor

import (
	"testing"

	"github.com/felixgeelhaar/nodeexpoctor/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Paths(t *testing.T) {
	t.Parallel()

	d := Default("/var/tmp/nodeexpoctor")

	assert.Equal(t, "node_exporter.service", d.UnitName())
	assert.Equal(t, "node_exporter-1.8.1.linux-amd64", d.ReleaseName())
	assert.Equal(t,
		"https://github.com/prometheus/node_exporter/releases/download/v1.8.1/node_exporter-1.8.1.linux-amd64.tar.gz",
		d.DownloadURL())
	assert.Equal(t, "/var/tmp/nodeexpoctor/node_exporter-1.8.1.linux-amd64.tar.gz", d.ArchivePath())
	assert.Equal(t, "/var/tmp/nodeexpoctor/node_exporter-1.8.1.linux-amd64.tar.gz.part", d.PartialArchivePath())
	assert.Equal(t, "/var/tmp/nodeexpoctor/node_exporter-1.8.1.linux-amd64.tar.gz.1", d.DuplicateArchivePath())
	assert.Equal(t, "/var/tmp/nodeexpoctor/node_exporter-1.8.1.linux-amd64/node_exporter", d.ExtractedBinary())
	assert.Equal(t, []string{
		"/etc/node_exporter",
		"/var/lib/node_exporter",
		"/var/lib/node_exporter/textfile_collector",
	}, d.Directories())
	assert.Equal(t, "node_exporter:node_exporter", d.Owner())
}

func TestDescriptor_ExecStart(t *testing.T) {
	t.Parallel()

	d := Default("/tmp/w")
	d.ExtraFlags = []string{"--collector.systemd"}

	assert.Equal(t,
		"/usr/local/bin/node_exporter --web.listen-address=:9100 --web.config.file=/etc/node_exporter/node_exporter.yml "+
			"--collector.textfile.directory=/var/lib/node_exporter/textfile_collector --collector.systemd",
		d.ExecStart())

	d.TextfileDir = ""
	d.ConfigFile = ""
	d.ExtraFlags = nil
	assert.Equal(t, "/usr/local/bin/node_exporter --web.listen-address=:9100", d.ExecStart())
	assert.Len(t, d.Directories(), 2)
}

func TestDescriptor_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Default("/tmp/w").Validate())

	tests := []struct {
		name    string
		mutate  func(*Descriptor)
		wantErr error
		field   string
	}{
		{"bad user", func(d *Descriptor) { d.User = "Root!" }, validation.ErrInvalidAccountName, "user"},
		{"bad version", func(d *Descriptor) { d.Version = "latest" }, validation.ErrInvalidVersion, "version"},
		{"relative binary", func(d *Descriptor) { d.BinaryPath = "bin/node_exporter" }, validation.ErrInvalidPath, "binary_path"},
		{"bad arch", func(d *Descriptor) { d.Arch = "x86_64" }, validation.ErrInvalidArch, "arch"},
		{"bad url", func(d *Descriptor) { d.URLTemplate = "https://example.com/latest.tar.gz" }, validation.ErrMissingPlaceholder, "download_url"},
		{"bad listen", func(d *Descriptor) { d.ListenAddress = "9100" }, validation.ErrInvalidListenAddress, "listen_address"},
		{"bad flag", func(d *Descriptor) { d.ExtraFlags = []string{"-x"} }, validation.ErrInvalidFlag, "extra_flags"},
		{"empty work dir", func(d *Descriptor) { d.WorkDir = "" }, validation.ErrEmptyInput, "work_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Default("/tmp/w")
			tt.mutate(&d)
			err := d.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestDescriptor_Validate_UnitNameMismatch(t *testing.T) {
	t.Parallel()

	d := Default("/tmp/w")
	d.UnitPath = "/etc/systemd/system/other.service"

	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `file name must be "node_exporter.service"`)
}

func TestDescriptor_Validate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	d := Default("/tmp/w")
	d.User = ""
	d.Group = ""

	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user:")
	assert.Contains(t, err.Error(), "group:")
}
