package metrics

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// ErrNoCollectorDir is returned when the textfile collector directory does
// not exist, e.g. before the first install or after a removal.
var ErrNoCollectorDir = errors.New("textfile collector directory does not exist")

// TextfileWriter publishes a Recorder as <dir>/nodeexpoctor_<operation>.prom.
// The file is rendered into the work directory and installed with the
// privileged runner, because the collector directory belongs to the
// service user.
type TextfileWriter struct {
	dir        string
	workDir    string
	fs         ports.FileSystem
	privileged ports.CommandRunner
	timeout    time.Duration
}

// NewTextfileWriter creates a writer for the collector directory dir.
func NewTextfileWriter(dir, workDir string, fs ports.FileSystem, privileged ports.CommandRunner, timeout time.Duration) *TextfileWriter {
	return &TextfileWriter{dir: dir, workDir: workDir, fs: fs, privileged: privileged, timeout: timeout}
}

// Path returns the destination file for an operation.
func (w *TextfileWriter) Path(operation string) string {
	return filepath.Join(w.dir, namespace+"_"+operation+".prom")
}

// Write publishes the recorder and returns the destination path.
func (w *TextfileWriter) Write(ctx context.Context, r *Recorder) (string, error) {
	if w.dir == "" || !w.fs.IsDir(w.dir) {
		return "", ErrNoCollectorDir
	}

	data, err := r.Encode()
	if err != nil {
		return "", err
	}

	if err := w.fs.MkdirAll(w.workDir, 0o755); err != nil {
		return "", err
	}
	tmp := filepath.Join(w.workDir, filepath.Base(w.Path(r.Operation())))
	if err := w.fs.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	defer func() { _ = w.fs.Remove(tmp) }()

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	dest := w.Path(r.Operation())
	args := []string{"-m", "0644", tmp, dest}
	result, err := w.privileged.Run(ctx, "install", args...)
	if err != nil {
		return "", step.RunError("install", args, err)
	}
	if !result.Success() {
		return "", step.CommandError("install", args, result)
	}
	return dest, nil
}
