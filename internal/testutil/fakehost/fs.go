package fakehost

import (
	"io/fs"
	"os"
	"path/filepath"
)

// ReadFile implements ports.FileSystem. Every file is world-readable.
func (h *Host) ReadFile(path string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.entries[filepath.Clean(path)]
	if !ok || e.dir {
		return nil, notExist("open", path)
	}
	return append([]byte(nil), e.data...), nil
}

// WriteFile implements ports.FileSystem. Only the work directory is writable.
func (h *Host) WriteFile(path string, data []byte, perm os.FileMode) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.writable(path) && !h.Root {
		return &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}
	}
	if parent, ok := h.entries[filepath.Dir(filepath.Clean(path))]; !ok || !parent.dir {
		return notExist("open", path)
	}
	h.put(path, append([]byte(nil), data...), false)
	h.entries[filepath.Clean(path)].mode = perm
	return nil
}

// Exists implements ports.FileSystem.
func (h *Host) Exists(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.entries[filepath.Clean(path)]
	return ok
}

// IsDir implements ports.FileSystem.
func (h *Host) IsDir(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[filepath.Clean(path)]
	return ok && e.dir
}

// Remove implements ports.FileSystem.
func (h *Host) Remove(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := filepath.Clean(path)
	if _, ok := h.entries[p]; !ok {
		return notExist("remove", path)
	}
	if !h.writable(p) && !h.Root {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrPermission}
	}
	delete(h.entries, p)
	return nil
}

// MkdirAll implements ports.FileSystem.
func (h *Host) MkdirAll(path string, perm os.FileMode) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := filepath.Clean(path)
	if e, ok := h.entries[p]; ok && e.dir {
		return nil
	}
	if !h.writable(p) && !h.Root {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrPermission}
	}
	h.mkdirAll(p, Invoker, Invoker, perm)
	return nil
}

// Rename implements ports.FileSystem.
func (h *Host) Rename(oldPath, newPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	src, dst := filepath.Clean(oldPath), filepath.Clean(newPath)
	e, ok := h.entries[src]
	if !ok {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: fs.ErrNotExist}
	}
	if (!h.writable(src) || !h.writable(dst)) && !h.Root {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: fs.ErrPermission}
	}
	h.entries[dst] = e
	delete(h.entries, src)
	return nil
}
