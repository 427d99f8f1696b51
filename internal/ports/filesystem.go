package ports

import "os"

// FileReader reads installed files such as the web config and
// /etc/os-release.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
	Exists(path string) bool
	IsDir(path string) bool
}

// FileSystem is the unprivileged file access of the invoking user. It
// stages files in the work directory; system paths are only ever changed
// by commands run through a privileged CommandRunner.
type FileSystem interface {
	FileReader
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Rename(oldPath, newPath string) error
	Remove(path string) error
}
