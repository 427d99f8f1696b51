package fakehost

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// AddUser creates a system user and its primary group.
func (h *Host) AddUser(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users[name] = h.nextUID
	h.nextUID--
	h.groups[name] = true
}

// HasUser reports whether the user exists.
func (h *Host) HasUser(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.users[name]
	return ok
}

// HasGroup reports whether the group exists.
func (h *Host) HasGroup(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.groups[name]
}

// SetFile places a file owned by owner with the given mode, creating parents.
func (h *Host) SetFile(path, content, owner string, mode os.FileMode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mkdirAll(filepath.Dir(path), "root", "root", 0o755)
	h.entries[filepath.Clean(path)] = &entry{data: []byte(content), owner: owner, group: owner, mode: mode}
}

// Content returns a file's content and whether it exists.
func (h *Host) Content(path string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[filepath.Clean(path)]
	if !ok || e.dir {
		return "", false
	}
	return string(e.data), true
}

// Owner returns "user:group" for a path, or "" when it does not exist.
func (h *Host) Owner(path string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[filepath.Clean(path)]
	if !ok {
		return ""
	}
	return e.owner + ":" + e.group
}

// Mode returns the permission bits of a path.
func (h *Host) Mode(path string) os.FileMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.entries[filepath.Clean(path)]; ok {
		return e.mode
	}
	return 0
}

// UnitActive reports whether the unit is running.
func (h *Host) UnitActive(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	u, ok := h.units[name]
	return ok && u.active
}

// UnitEnabled reports whether the unit is enabled.
func (h *Host) UnitEnabled(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	u, ok := h.units[name]
	return ok && u.enabled
}

// Crash marks a running unit as failed, as if the process died.
func (h *Host) Crash(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	u := h.unit(name)
	u.active = false
	u.failed = true
	h.log(name, name+": Main process exited, code=killed, status=9/KILL")
}

// StopUnit stops a unit without going through systemctl.
func (h *Host) StopUnit(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	u := h.unit(name)
	u.active = false
	u.failed = false
}

// Calls returns every command run, as issued (including any sudo prefix).
func (h *Host) Calls() []ports.CommandCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ports.CommandCall(nil), h.calls...)
}

// InteractiveCalls returns every interactive command run.
func (h *Host) InteractiveCalls() []ports.CommandCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ports.CommandCall(nil), h.interactive...)
}

// Ran counts the calls of a program, ignoring a sudo prefix. When prefix
// arguments are given only calls whose arguments start with them count.
func (h *Host) Ran(command string, prefix ...string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, c := range h.calls {
		cmd, args := c.Command, c.Args
		if cmd == "sudo" && len(args) > 1 && args[0] == "--" {
			cmd, args = args[1], args[2:]
		}
		if cmd != command || len(args) < len(prefix) {
			continue
		}
		if strings.Join(args[:len(prefix)], "\x00") == strings.Join(prefix, "\x00") {
			n++
		}
	}
	return n
}

// ResetCalls forgets the recorded calls.
func (h *Host) ResetCalls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
	h.interactive = nil
}
