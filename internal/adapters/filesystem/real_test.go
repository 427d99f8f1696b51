package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealFileSystem_WriteReadFile(t *testing.T) {
	t.Parallel()

	rfs := NewRealFileSystem()
	dir := t.TempDir()
	path := filepath.Join(dir, "node_exporter.service")

	require.NoError(t, rfs.WriteFile(path, []byte("[Unit]\n"), 0o640))
	require.NoError(t, rfs.WriteFile(path, []byte("[Service]\n"), 0o640))

	content, err := rfs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[Service]\n", string(content))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o640), info.Mode().Perm())
	assert.False(t, rfs.IsDir(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestRealFileSystem_WriteFileMissingDir(t *testing.T) {
	t.Parallel()

	err := NewRealFileSystem().WriteFile(filepath.Join(t.TempDir(), "missing", "x"), []byte("x"), 0o644)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRealFileSystem_DirsAndRename(t *testing.T) {
	t.Parallel()

	rfs := NewRealFileSystem()
	dir := filepath.Join(t.TempDir(), "work", "nested")

	require.NoError(t, rfs.MkdirAll(dir, 0o755))
	assert.True(t, rfs.IsDir(dir))
	assert.True(t, rfs.Exists(dir))

	part := filepath.Join(dir, "a.tar.gz.part")
	require.NoError(t, os.WriteFile(part, []byte("x"), 0o644))
	require.NoError(t, rfs.Rename(part, filepath.Join(dir, "a.tar.gz")))
	assert.False(t, rfs.Exists(part))
	assert.False(t, rfs.IsDir(filepath.Join(dir, "a.tar.gz")))

	require.NoError(t, rfs.Remove(filepath.Join(dir, "a.tar.gz")))
	assert.ErrorIs(t, rfs.Remove(filepath.Join(dir, "a.tar.gz")), fs.ErrNotExist)

	_, err := rfs.ReadFile(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
