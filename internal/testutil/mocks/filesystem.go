package mocks

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// FileSystem is a thread-safe in-memory ports.FileSystem.
type FileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	modes map[string]os.FileMode
	dirs  map[string]bool
}

// NewFileSystem creates a new FileSystem mock.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files: make(map[string][]byte),
		modes: make(map[string]os.FileMode),
		dirs:  make(map[string]bool),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *FileSystem) AddFile(path string, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(content)
	m.modes[path] = 0o644
}

// AddDir adds a directory to the mock filesystem.
func (m *FileSystem) AddDir(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path] = true
}

// ReadFile reads a file from the mock filesystem.
func (m *FileSystem) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if content, ok := m.files[path]; ok {
		return append([]byte(nil), content...), nil
	}
	return nil, notExist("open", path)
}

// WriteFile writes a file to the mock filesystem.
func (m *FileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
	m.modes[path] = perm
	return nil
}

// Exists checks if a file or directory exists in the mock filesystem.
func (m *FileSystem) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, fileExists := m.files[path]
	return fileExists || m.dirs[path]
}

// IsDir checks if a path is a directory in the mock filesystem.
func (m *FileSystem) IsDir(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirs[path]
}

// Remove removes a file or an empty directory.
func (m *FileSystem) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; ok {
		delete(m.files, path)
		delete(m.modes, path)
		return nil
	}
	if m.dirs[path] {
		prefix := path + string(filepath.Separator)
		for p := range m.files {
			if strings.HasPrefix(p, prefix) {
				return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrExist}
			}
		}
		delete(m.dirs, path)
		return nil
	}
	return notExist("remove", path)
}

// MkdirAll creates a directory and its parents in the mock filesystem.
func (m *FileSystem) MkdirAll(path string, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := filepath.Clean(path); p != "/" && p != "."; p = filepath.Dir(p) {
		m.dirs[p] = true
	}
	return nil
}

// Rename renames a file in the mock filesystem.
func (m *FileSystem) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[oldPath]
	if !ok {
		return notExist("rename", oldPath)
	}
	m.files[newPath] = content
	m.modes[newPath] = m.modes[oldPath]
	delete(m.files, oldPath)
	delete(m.modes, oldPath)
	return nil
}

// Mode returns the permissions a file was written with, for assertions.
func (m *FileSystem) Mode(path string) (os.FileMode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mode, ok := m.modes[path]
	return mode, ok
}

// Files returns the paths of all files, for assertions.
func (m *FileSystem) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	return paths
}

func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

var _ ports.FileSystem = (*FileSystem)(nil)
