// Package testutil provides fixtures shared by nodeexpoctor tests.
package testutil

import (
	"embed"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

//go:embed fixtures/*
var fixtures embed.FS

// Fixture returns the contents of fixtures/name: captured systemctl and
// os-release output and sample configuration files.
func Fixture(t *testing.T, name string) string {
	t.Helper()

	data, err := fixtures.ReadFile(path.Join("fixtures", name))
	require.NoError(t, err, "fixture %s", name)
	return string(data)
}

// WriteFixture copies fixtures/name into dir and returns the new path. The
// file keeps its name, so loaders that pick a format by extension see the
// right one.
func WriteFixture(t *testing.T, dir, name string) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(Fixture(t, name)), 0o600))
	return p
}
