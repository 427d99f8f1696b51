package mocks

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystem_ReadWrite(t *testing.T) {
	t.Parallel()

	m := NewFileSystem()
	_, err := m.ReadFile("/etc/os-release")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, m.WriteFile("/var/tmp/a", []byte("data"), 0o600))
	data, err := m.ReadFile("/var/tmp/a")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	mode, ok := m.Mode("/var/tmp/a")
	require.True(t, ok)
	assert.Equal(t, fs.FileMode(0o600), mode)
}

func TestFileSystem_Dirs(t *testing.T) {
	t.Parallel()

	m := NewFileSystem()
	require.NoError(t, m.MkdirAll("/var/tmp/work", 0o755))
	assert.True(t, m.IsDir("/var/tmp"))
	assert.True(t, m.Exists("/var/tmp/work"))

	m.AddFile("/var/tmp/work/a", "x")
	assert.Error(t, m.Remove("/var/tmp/work"))
	require.NoError(t, m.Remove("/var/tmp/work/a"))
	require.NoError(t, m.Remove("/var/tmp/work"))
	assert.ErrorIs(t, m.Remove("/var/tmp/work"), fs.ErrNotExist)
}

func TestFileSystem_Rename(t *testing.T) {
	t.Parallel()

	m := NewFileSystem()
	m.AddFile("/w/a.part", "x")
	require.NoError(t, m.Rename("/w/a.part", "/w/a"))
	assert.False(t, m.Exists("/w/a.part"))
	assert.True(t, m.Exists("/w/a"))
	assert.ErrorIs(t, m.Rename("/w/missing", "/w/b"), fs.ErrNotExist)
	assert.Equal(t, []string{"/w/a"}, m.Files())
}
