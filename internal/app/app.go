// Package app wires the host adapters to the provisioning core and runs
// the nodeexpoctor operations.
package app

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/nodeexpoctor/internal/adapters/command"
	"github.com/felixgeelhaar/nodeexpoctor/internal/adapters/filesystem"
	"github.com/felixgeelhaar/nodeexpoctor/internal/adapters/logging"
	"github.com/felixgeelhaar/nodeexpoctor/internal/adapters/metrics"
	"github.com/felixgeelhaar/nodeexpoctor/internal/adapters/systemd"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/config"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/descriptor"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/execution"
	"github.com/felixgeelhaar/nodeexpoctor/internal/ports"
	"github.com/felixgeelhaar/nodeexpoctor/internal/provider/exporter"
)

// Options are the global command-line settings. Empty values keep the
// configuration file's setting.
type Options struct {
	ConfigPath string
	Verbose    bool
	LogFormat  string
	Backend    string
	Sudo       string
	Build      BuildInfo
}

// HostRunner runs commands and can attach them to the terminal.
type HostRunner interface {
	ports.CommandRunner
	ports.InteractiveRunner
}

// Host is everything the application needs from the machine.
type Host struct {
	Runner HostRunner
	FS     ports.FileSystem
	// Services overrides the systemctl service manager when set.
	Services ports.ServiceManager
	Euid     int
	Getenv   func(string) string
}

// App runs nodeexpoctor operations against one host.
type App struct {
	cfg      *config.Config
	desc     descriptor.Descriptor
	logger   ports.Logger
	runID    string
	env      *exporter.Env
	provider *exporter.Provider
	planner  *execution.Planner
	executor *execution.Executor
	status   *StatusChecker
	editor   *ConfigEditor
	versions *VersionChecker
	textfile *metrics.TextfileWriter
	closers  []func()
}

// New loads the configuration, applies opts and wires the real adapters.
// Log output goes to logOut.
func New(ctx context.Context, opts Options, logOut io.Writer) (*App, error) {
	cfg, err := config.NewLoader().Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := ApplyOptions(cfg, opts); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg, opts.Verbose, logOut)
	if err != nil {
		return nil, err
	}

	host := Host{
		Runner: command.NewRealRunner().WithLogger(logger),
		FS:     filesystem.NewRealFileSystem(),
		Euid:   os.Geteuid(),
		Getenv: os.Getenv,
	}

	var closers []func()
	if cfg.Backend == config.BackendDBus {
		bus, err := systemd.NewDBus(ctx, cfg.Timeouts.Service.Std())
		if err != nil {
			return nil, err
		}
		host.Services = bus
		closers = append(closers, bus.Close)
	}

	a, err := NewWithHost(cfg, host, logger, opts.Build)
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}
	a.closers = append(a.closers, closers...)
	return a, nil
}

// ApplyOptions overrides configuration values with command-line flags and
// validates the result.
func ApplyOptions(cfg *config.Config, opts Options) error {
	if opts.LogFormat != "" {
		cfg.Logging.Format = opts.LogFormat
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.Sudo != "" {
		cfg.Sudo = opts.Sudo
	}
	return cfg.Validate()
}

// NewLogger builds the console logger for cfg.
func NewLogger(cfg *config.Config, verbose bool, out io.Writer) (ports.Logger, error) {
	level, err := ports.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, config.NewValidationFailedError("logging.level", err.Error())
	}
	if verbose {
		level = ports.LevelDebug
	}
	return logging.NewConsoleLogger(
		logging.WithOutput(out),
		logging.WithFormat(logging.Format(cfg.Logging.Format)),
		logging.WithLevel(level),
		logging.WithColor(!color.NoColor),
	), nil
}

// NewWithHost wires the application to host. It is what New uses after
// building the real adapters, and what tests use with a simulated host.
func NewWithHost(cfg *config.Config, host Host, logger ports.Logger, build BuildInfo) (*App, error) {
	mode, err := command.ParseSudoMode(cfg.Sudo)
	if err != nil {
		return nil, config.NewValidationFailedError("sudo", err.Error())
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	getenv := host.Getenv
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	runID := uuid.NewString()
	logger = logger.With(ports.F("run_id", runID))

	privileged := command.NewPrivilegedRunner(host.Runner, mode, host.Euid)
	services := host.Services
	if services == nil {
		services = systemd.NewSystemctl(host.Runner, privileged, cfg.Timeouts.Service.Std())
	}

	desc := cfg.Descriptor()
	env := &exporter.Env{
		Runner:     host.Runner,
		Privileged: privileged,
		FS:         host.FS,
		Services:   services,
		Timeouts: exporter.Timeouts{
			Download: cfg.Timeouts.Download.Std(),
			Service:  cfg.Timeouts.Service.Std(),
			Command:  cfg.Timeouts.Command.Std(),
		},
		Retries: cfg.Download.Retries,
	}

	a := &App{
		cfg:      cfg,
		desc:     desc,
		logger:   logger,
		runID:    runID,
		env:      env,
		provider: exporter.NewProvider(desc, env),
		planner:  execution.NewPlanner(),
		executor: execution.NewExecutor().WithLogger(logger),
		status: NewStatusChecker(services,
			systemd.NewJournalctl(privileged, cfg.Timeouts.Command.Std()),
			logger, cfg.LogWindow.Std()),
		editor: NewConfigEditor(host.FS, privileged, privileged, getenv,
			cfg.Editor, cfg.Timeouts.Command.Std()),
		versions: NewVersionChecker(env, build),
	}
	if cfg.Metrics.Textfile {
		a.textfile = metrics.NewTextfileWriter(desc.TextfileDir, desc.WorkDir, host.FS,
			privileged, cfg.Timeouts.Command.Std())
	}

	logger.Debug(context.Background(), "configured",
		ports.F("config", sourceName(cfg)),
		ports.F("backend", cfg.Backend),
		ports.F("sudo", string(mode)),
		ports.F("uses_sudo", privileged.UsesSudo()),
		ports.F("version", desc.Version),
	)
	return a, nil
}

// Close releases adapter resources.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}

// Config returns the effective configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Descriptor returns the managed service descriptor.
func (a *App) Descriptor() descriptor.Descriptor {
	return a.desc
}

// RunID identifies this invocation in logs.
func (a *App) RunID() string {
	return a.runID
}

// Logger returns the run logger.
func (a *App) Logger() ports.Logger {
	return a.logger
}

func sourceName(cfg *config.Config) string {
	if cfg.Source() == "" {
		return "defaults"
	}
	return cfg.Source()
}
