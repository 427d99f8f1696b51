// Package fakehost simulates a single systemd Linux host for tests. It
// scripts the OS tools the provisioning steps call (id, useradd, install,
// wget, tar, systemctl, journalctl, ...) over an in-memory filesystem and
// implements ports.CommandRunner, ports.InteractiveRunner and
// ports.FileSystem against the same state.
package fakehost

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
)

// UnitDir is where the simulated systemd looks up unit files.
const UnitDir = "/etc/systemd/system"

// Invoker is the unprivileged account files written through the
// FileSystem methods belong to.
const Invoker = "tester"

type entry struct {
	data  []byte
	dir   bool
	owner string
	group string
	mode  os.FileMode
}

type unit struct {
	enabled bool
	active  bool
	failed  bool
	loaded  string
}

// Host is a simulated host. The exported knobs may be set before use.
type Host struct {
	// FailDownload makes wget fail with a resolve error after writing a
	// partial file.
	FailDownload bool
	// CorruptArchive makes tar reject the archive.
	CorruptArchive bool
	// FailStart makes every systemctl start/restart leave the unit failed.
	FailStart bool
	// FailJournal makes journalctl fail.
	FailJournal bool
	// DenySudo makes sudo refuse to elevate.
	DenySudo bool
	// Root makes unprivileged commands run as root.
	Root bool
	// Machine is reported by uname -m.
	Machine string
	// Editor is called for interactive editor sessions with the file path.
	Editor func(path string, h *Host)
	// Intercept, when set, sees every command after sudo is unwrapped. A
	// true result replaces the simulated behaviour. It must not call back
	// into the host.
	Intercept func(command string, args []string) (ports.CommandResult, bool)

	workDir string

	mu          sync.Mutex
	entries     map[string]*entry
	users       map[string]int
	groups      map[string]bool
	units       map[string]*unit
	journal     map[string][]string
	calls       []ports.CommandCall
	interactive []ports.CommandCall
	nextUID     int
	clock       func() time.Time
}

// New returns a host with a base filesystem, an /etc/os-release and a
// work directory writable by the invoking user.
func New(workDir string) *Host {
	h := &Host{
		Machine: "x86_64",
		workDir: filepath.Clean(workDir),
		entries: make(map[string]*entry),
		users:   map[string]int{"root": 0},
		groups:  map[string]bool{"root": true},
		units:   make(map[string]*unit),
		journal: make(map[string][]string),
		nextUID: 998,
		clock:   time.Now,
	}
	for _, d := range []string{"/etc", UnitDir, "/usr/local/bin", "/var/lib", "/var/tmp"} {
		h.mkdirAll(d, "root", "root", 0o755)
	}
	h.entries["/etc/os-release"] = &entry{
		data:  []byte("PRETTY_NAME=\"Debian GNU/Linux 12 (bookworm)\"\nID=debian\nVERSION_ID=\"12\"\n"),
		owner: "root", group: "root", mode: 0o644,
	}
	return h
}

// WorkDir returns the directory the invoking user may write to.
func (h *Host) WorkDir() string {
	return h.workDir
}

// Run implements ports.CommandRunner.
func (h *Host) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.CommandResult{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, ports.CommandCall{Command: command, Args: append([]string(nil), args...)})

	root := h.Root
	if command == "sudo" {
		if h.DenySudo {
			return fail(1, "sudo: a password is required"), nil
		}
		if len(args) > 0 && args[0] == "--" {
			args = args[1:]
		}
		if len(args) == 0 {
			return fail(1, "usage: sudo command"), nil
		}
		command, args = args[0], args[1:]
		root = true
	}
	return h.dispatch(command, args, root)
}

// RunInteractive implements ports.InteractiveRunner by invoking Editor.
func (h *Host) RunInteractive(ctx context.Context, command string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	h.interactive = append(h.interactive, ports.CommandCall{Command: command, Args: append([]string(nil), args...)})
	if command == "sudo" {
		if h.DenySudo {
			h.mu.Unlock()
			return fmt.Errorf("sudo: a password is required")
		}
		if len(args) > 0 && args[0] == "--" {
			args = args[1:]
		}
	}
	editor := h.Editor
	h.mu.Unlock()

	if editor != nil && len(args) > 0 {
		editor(args[len(args)-1], h)
	}
	return nil
}

func (h *Host) dispatch(command string, args []string, root bool) (ports.CommandResult, error) {
	if h.Intercept != nil {
		if result, ok := h.Intercept(command, args); ok {
			return result, nil
		}
	}
	switch command {
	case "id":
		return h.id(args)
	case "getent":
		return h.getent(args)
	case "groupadd", "useradd", "userdel", "groupdel":
		if !root {
			return denied(command), nil
		}
		return h.account(command, args)
	case "stat":
		return h.stat(args)
	case "install":
		if !root {
			return denied(command), nil
		}
		return h.install(args)
	case "wget":
		return h.wget(args, root)
	case "tar":
		return h.tar(args, root)
	case "rm":
		return h.rm(args, root)
	case "systemctl":
		return h.systemctl(args, root)
	case "journalctl":
		return h.journalctl(args)
	case "uname":
		return ports.CommandResult{Stdout: h.Machine + "\n"}, nil
	case "cat":
		return h.cat(args, root)
	}

	if e, ok := h.entries[command]; ok && !e.dir {
		return h.execBinary(command, e, args)
	}
	return ports.CommandResult{}, &exec.Error{Name: command, Err: exec.ErrNotFound}
}

func (h *Host) id(args []string) (ports.CommandResult, error) {
	name := last(args)
	uid, ok := h.users[name]
	if !ok {
		return fail(1, fmt.Sprintf("id: '%s': no such user", name)), nil
	}
	return ports.CommandResult{Stdout: strconv.Itoa(uid) + "\n"}, nil
}

func (h *Host) getent(args []string) (ports.CommandResult, error) {
	if len(args) != 2 || args[0] != "group" {
		return fail(1, "getent: unsupported database"), nil
	}
	if !h.groups[args[1]] {
		return ports.CommandResult{ExitCode: 2}, nil
	}
	return ports.CommandResult{Stdout: args[1] + ":x:998:\n"}, nil
}

func (h *Host) account(command string, args []string) (ports.CommandResult, error) {
	name := last(args)
	switch command {
	case "groupadd":
		if h.groups[name] {
			return fail(9, fmt.Sprintf("groupadd: group '%s' already exists", name)), nil
		}
		h.groups[name] = true
	case "useradd":
		if _, ok := h.users[name]; ok {
			return fail(9, fmt.Sprintf("useradd: user '%s' already exists", name)), nil
		}
		if g := flagValue(args, "-g"); g != "" && !h.groups[g] {
			return fail(6, fmt.Sprintf("useradd: group '%s' does not exist", g)), nil
		}
		h.users[name] = h.nextUID
		h.nextUID--
	case "userdel":
		if _, ok := h.users[name]; !ok {
			return fail(6, fmt.Sprintf("userdel: user '%s' does not exist", name)), nil
		}
		delete(h.users, name)
	case "groupdel":
		if !h.groups[name] {
			return fail(6, fmt.Sprintf("groupdel: group '%s' does not exist", name)), nil
		}
		delete(h.groups, name)
	}
	return ports.CommandResult{}, nil
}

func (h *Host) stat(args []string) (ports.CommandResult, error) {
	p := last(args)
	e, ok := h.entries[filepath.Clean(p)]
	if !ok {
		return fail(1, fmt.Sprintf("stat: cannot statx '%s': No such file or directory", p)), nil
	}
	return ports.CommandResult{Stdout: e.owner + ":" + e.group + "\n"}, nil
}

func (h *Host) install(args []string) (ports.CommandResult, error) {
	var (
		dirMode bool
		owner   = "root"
		group   = "root"
		mode    = os.FileMode(0o755)
		paths   []string
	)
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-d":
			dirMode = true
		case "-o":
			i++
			owner = args[i]
		case "-g":
			i++
			group = args[i]
		case "-m":
			i++
			m, err := strconv.ParseUint(args[i], 8, 32)
			if err != nil {
				return fail(1, fmt.Sprintf("install: invalid mode '%s'", args[i])), nil
			}
			mode = os.FileMode(m)
		default:
			paths = append(paths, args[i])
		}
	}
	if _, ok := h.users[owner]; !ok {
		return fail(1, fmt.Sprintf("install: invalid user '%s'", owner)), nil
	}
	if !h.groups[group] {
		return fail(1, fmt.Sprintf("install: invalid group '%s'", group)), nil
	}

	if dirMode {
		for _, p := range paths {
			h.mkdirAll(p, owner, group, mode)
		}
		return ports.CommandResult{}, nil
	}

	if len(paths) != 2 {
		return fail(1, "install: missing destination file operand"), nil
	}
	src, dst := filepath.Clean(paths[0]), filepath.Clean(paths[1])
	e, ok := h.entries[src]
	if !ok || e.dir {
		return fail(1, fmt.Sprintf("install: cannot stat '%s': No such file or directory", paths[0])), nil
	}
	if parent, ok := h.entries[filepath.Dir(dst)]; !ok || !parent.dir {
		return fail(1, fmt.Sprintf("install: cannot create regular file '%s': No such file or directory", paths[1])), nil
	}
	h.entries[dst] = &entry{data: append([]byte(nil), e.data...), owner: owner, group: group, mode: mode}
	return ports.CommandResult{}, nil
}

func (h *Host) wget(args []string, root bool) (ports.CommandResult, error) {
	out := flagValue(args, "-O")
	url := last(args)
	if out == "" {
		return fail(1, "wget: missing -O"), nil
	}
	if !root && !h.writable(out) {
		return fail(1, fmt.Sprintf("%s: Permission denied", out)), nil
	}
	if h.FailDownload {
		h.put(out, []byte("partial"), root)
		return fail(4, "wget: unable to resolve host address 'github.com'"), nil
	}
	h.put(out, []byte("fake-archive "+url), root)
	return ports.CommandResult{}, nil
}

func (h *Host) tar(args []string, root bool) (ports.CommandResult, error) {
	archive := flagValue(args, "-xzf")
	dest := flagValue(args, "-C")
	e, ok := h.entries[filepath.Clean(archive)]
	if !ok {
		return fail(2, fmt.Sprintf("tar: %s: Cannot open: No such file or directory", archive)), nil
	}
	if h.CorruptArchive || !strings.HasPrefix(string(e.data), "fake-archive ") {
		return fail(2, "gzip: stdin: not in gzip format\ntar: Child returned status 1"), nil
	}
	if !root && !h.writable(dest) {
		return fail(2, fmt.Sprintf("tar: %s: Cannot open: Permission denied", dest)), nil
	}

	release := strings.TrimSuffix(filepath.Base(archive), ".tar.gz")
	artifact, rest, _ := strings.Cut(release, "-")
	version, _, _ := strings.Cut(rest, ".linux-")

	dir := filepath.Join(dest, release)
	owner := Invoker
	if root {
		owner = "root"
	}
	h.mkdirAll(dir, owner, owner, 0o755)
	h.entries[filepath.Join(dir, artifact)] = &entry{
		data:  []byte("#!fake " + artifact + " version " + version),
		owner: owner, group: owner, mode: 0o755,
	}
	h.entries[filepath.Join(dir, "LICENSE")] = &entry{data: []byte("Apache"), owner: owner, group: owner, mode: 0o644}
	return ports.CommandResult{}, nil
}

func (h *Host) rm(args []string, root bool) (ports.CommandResult, error) {
	var targets []string
	for _, a := range args {
		if a == "--" || strings.HasPrefix(a, "-") {
			continue
		}
		targets = append(targets, filepath.Clean(a))
	}
	for _, t := range targets {
		if !root && !h.writable(t) {
			return fail(1, fmt.Sprintf("rm: cannot remove '%s': Permission denied", t)), nil
		}
	}
	for _, t := range targets {
		h.removeAll(t)
	}
	return ports.CommandResult{}, nil
}

// cat prints a file. Files that are not world-readable need root.
func (h *Host) cat(args []string, root bool) (ports.CommandResult, error) {
	p := last(args)
	e, ok := h.entries[filepath.Clean(p)]
	if !ok || e.dir {
		return fail(1, fmt.Sprintf("cat: %s: No such file or directory", p)), nil
	}
	if !root && e.mode&0o004 == 0 && e.owner != Invoker {
		return fail(1, fmt.Sprintf("cat: %s: Permission denied", p)), nil
	}
	return ports.CommandResult{Stdout: string(e.data)}, nil
}

func (h *Host) systemctl(args []string, root bool) (ports.CommandResult, error) {
	if len(args) == 0 {
		return fail(1, "systemctl: missing verb"), nil
	}
	verb := args[0]
	name := ""
	if len(args) > 1 {
		name = args[1]
	}

	if verb == "show" {
		return h.show(name), nil
	}
	if !root {
		return fail(1, "Failed to "+verb+" "+name+": Interactive authentication required."), nil
	}

	switch verb {
	case "daemon-reload":
		for n, u := range h.units {
			if e, ok := h.entries[filepath.Join(UnitDir, n)]; ok {
				u.loaded = string(e.data)
			}
		}
		for _, n := range h.unitFiles() {
			if _, ok := h.units[n]; !ok {
				h.units[n] = &unit{loaded: string(h.entries[filepath.Join(UnitDir, n)].data)}
			}
		}
		return ports.CommandResult{}, nil
	case "enable":
		if !h.hasUnitFile(name) {
			return fail(1, fmt.Sprintf("Failed to enable unit: Unit file %s does not exist.", name)), nil
		}
		h.unit(name).enabled = true
		return ports.CommandResult{Stderr: "Created symlink /etc/systemd/system/multi-user.target.wants/" + name + ".\n"}, nil
	case "disable":
		if !h.hasUnitFile(name) {
			return fail(1, fmt.Sprintf("Failed to disable unit: Unit file %s does not exist.", name)), nil
		}
		h.unit(name).enabled = false
		return ports.CommandResult{}, nil
	case "start", "restart":
		return h.start(name), nil
	case "stop":
		u, ok := h.units[name]
		if !ok && !h.hasUnitFile(name) {
			return fail(5, fmt.Sprintf("Failed to stop %s: Unit %s not loaded.", name, name)), nil
		}
		if ok && u.active {
			h.log(name, "Stopped Node Exporter.")
		}
		if ok {
			u.active = false
			u.failed = false
		}
		return ports.CommandResult{}, nil
	}
	return fail(1, "Unknown command verb "+verb+"."), nil
}

func (h *Host) start(name string) ports.CommandResult {
	e, ok := h.entries[filepath.Join(UnitDir, name)]
	if !ok {
		return fail(5, fmt.Sprintf("Failed to start %s: Unit %s not found.", name, name))
	}
	u := h.unit(name)
	if u.loaded == "" {
		u.loaded = string(e.data)
	}

	binary := execStart(u.loaded)
	if b, ok := h.entries[binary]; h.FailStart || !ok || b.dir {
		u.active = false
		u.failed = true
		h.log(name, name+": Main process exited, code=exited, status=203/EXEC")
		h.log(name, name+": Failed with result 'exit-code'.")
		return fail(1, fmt.Sprintf("Job for %s failed because the control process exited with error code.\n"+
			"See \"systemctl status %s\" and \"journalctl -xeu %s\" for details.", name, name, name))
	}
	u.active = true
	u.failed = false
	h.log(name, "Started Node Exporter.")
	return ports.CommandResult{}
}

func (h *Host) show(name string) ports.CommandResult {
	load, active, sub, file, reload := "not-found", "inactive", "dead", "", "no"
	u, known := h.units[name]
	e, hasFile := h.entries[filepath.Join(UnitDir, name)]
	if hasFile || (known && u.active) {
		load = "loaded"
		file = "disabled"
	}
	if known {
		if u.enabled && hasFile {
			file = "enabled"
		}
		switch {
		case u.active:
			active, sub = "active", "running"
		case u.failed:
			active, sub = "failed", "failed"
		}
		if hasFile && u.loaded != "" && u.loaded != string(e.data) {
			reload = "yes"
		}
	}
	return ports.CommandResult{Stdout: fmt.Sprintf(
		"LoadState=%s\nActiveState=%s\nSubState=%s\nUnitFileState=%s\nNeedDaemonReload=%s\n",
		load, active, sub, file, reload)}
}

func (h *Host) journalctl(args []string) (ports.CommandResult, error) {
	if h.FailJournal {
		return fail(1, "No journal files were found."), nil
	}
	lines := h.journal[flagValue(args, "-u")]
	if len(lines) == 0 {
		return ports.CommandResult{Stdout: "-- No entries --\n"}, nil
	}
	return ports.CommandResult{Stdout: strings.Join(lines, "\n") + "\n"}, nil
}

func (h *Host) execBinary(path string, e *entry, args []string) (ports.CommandResult, error) {
	header := string(e.data)
	if !strings.HasPrefix(header, "#!fake ") {
		return fail(126, path+": cannot execute binary file"), nil
	}
	artifact, version, _ := strings.Cut(strings.TrimPrefix(header, "#!fake "), " version ")
	if len(args) == 1 && args[0] == "--version" {
		return ports.CommandResult{Stdout: fmt.Sprintf(
			"%s, version %s (branch: HEAD, revision: 0000000)\n  build user: root@fakehost\n", artifact, version)}, nil
	}
	return fail(1, "unsupported invocation"), nil
}

func (h *Host) log(name, msg string) {
	stamp := h.clock().Format("Jan 02 15:04:05")
	h.journal[name] = append(h.journal[name], stamp+" fakehost systemd[1]: "+msg)
}

func (h *Host) unit(name string) *unit {
	u, ok := h.units[name]
	if !ok {
		u = &unit{}
		h.units[name] = u
	}
	return u
}

func (h *Host) hasUnitFile(name string) bool {
	_, ok := h.entries[filepath.Join(UnitDir, name)]
	return ok
}

func (h *Host) unitFiles() []string {
	var names []string
	for p, e := range h.entries {
		if !e.dir && filepath.Dir(p) == UnitDir && strings.HasSuffix(p, ".service") {
			names = append(names, filepath.Base(p))
		}
	}
	sort.Strings(names)
	return names
}

func (h *Host) writable(p string) bool {
	p = filepath.Clean(p)
	return p == h.workDir || strings.HasPrefix(p, h.workDir+"/")
}

func (h *Host) put(p string, data []byte, root bool) {
	owner := Invoker
	if root {
		owner = "root"
	}
	h.entries[filepath.Clean(p)] = &entry{data: data, owner: owner, group: owner, mode: 0o644}
}

func (h *Host) mkdirAll(p, owner, group string, mode os.FileMode) {
	p = filepath.Clean(p)
	for parent := filepath.Dir(p); parent != "/" && parent != "."; parent = filepath.Dir(parent) {
		if _, ok := h.entries[parent]; !ok {
			h.entries[parent] = &entry{dir: true, owner: "root", group: "root", mode: 0o755}
		}
	}
	if e, ok := h.entries[p]; ok && e.dir {
		e.owner, e.group, e.mode = owner, group, mode
		return
	}
	h.entries[p] = &entry{dir: true, owner: owner, group: group, mode: mode}
}

func (h *Host) removeAll(p string) {
	prefix := p + "/"
	for k := range h.entries {
		if k == p || strings.HasPrefix(k, prefix) {
			delete(h.entries, k)
		}
	}
}

// execStart returns the program of the first ExecStart= line.
func execStart(unitFile string) string {
	for _, line := range strings.Split(unitFile, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "ExecStart="); ok {
			fields := strings.Fields(v)
			if len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return ""
}

func fail(code int, stderr string) ports.CommandResult {
	return ports.CommandResult{ExitCode: code, Stderr: stderr + "\n"}
}

func denied(command string) ports.CommandResult {
	return fail(1, command+": Permission denied.")
}

func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func last(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}

var (
	_ ports.CommandRunner     = (*Host)(nil)
	_ ports.InteractiveRunner = (*Host)(nil)
	_ ports.FileSystem        = (*Host)(nil)
)

// notExist builds the error os functions return for a missing path.
func notExist(op, p string) error {
	return &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
}
