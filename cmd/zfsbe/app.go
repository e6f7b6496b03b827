// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/zfsbe/zfsbe/internal/artifacts"
	"github.com/zfsbe/zfsbe/internal/bootenv"
	"github.com/zfsbe/zfsbe/internal/config"
	"github.com/zfsbe/zfsbe/internal/doctor"
	"github.com/zfsbe/zfsbe/internal/hostexec"
	"github.com/zfsbe/zfsbe/internal/installer"
	"github.com/zfsbe/zfsbe/internal/pacman"
	"github.com/zfsbe/zfsbe/internal/probe"
	"github.com/zfsbe/zfsbe/internal/secureboot"
	"github.com/zfsbe/zfsbe/internal/service"
	"github.com/zfsbe/zfsbe/internal/tui"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// debugEnv turns on debug logging when set to anything but "" or "0".
const debugEnv = "ZFSBE_DEBUG"

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every command handler receives an App and builds
	// a session from it.
	App struct {
		deps  Dependencies
		flags globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with host implementations by NewApp or when a
	// session is opened. Tests supply fakes to run commands without a host.
	Dependencies struct {
		Config   config.Provider
		Runner   hostexec.Runner
		Fs       afero.Fs
		Mounts   probe.MountLister
		ZFS      probe.PoolLister
		EUID     func() int
		Dial     service.DialFunc
		Firmware secureboot.Firmware
		Keys     installer.KeyVault
		Prompter tui.Prompter
		Stdin    io.Reader
		Stdout   io.Writer
		Stderr   io.Writer
	}

	globalFlags struct {
		configFile string
		verbose    bool
		root       string
	}

	// session is one command invocation's loaded settings and collaborators.
	session struct {
		config *config.Config
		logger *log.Logger
		deps   *installer.Deps
		units  *service.Manager
		signer *secureboot.Signer
		envs   *bootenv.Manager
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Firmware == nil {
		deps.Firmware = secureboot.EFIVars{}
	}
	return &App{deps: deps}
}

// loadConfig loads settings honoring --config.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	return a.deps.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configFile})
}

// newLogger builds the process logger. Debug output is enabled by --verbose,
// ui.verbose or ZFSBE_DEBUG.
func (a *App) newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(a.deps.Stderr, log.Options{Prefix: config.AppName})
	if a.flags.verbose || (cfg != nil && cfg.UI.Verbose) || debugEnabled(os.Getenv(debugEnv)) {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func debugEnabled(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "0" && !strings.EqualFold(v, "false")
}

// open loads settings and builds every collaborator for one command.
func (a *App) open(ctx context.Context) (*session, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger := a.newLogger(cfg)

	runner := a.deps.Runner
	if runner == nil {
		runner = hostexec.NewExecRunner(logger)
	}

	probeOpts := []probe.Option{}
	if a.deps.Fs != nil {
		probeOpts = append(probeOpts, probe.WithFs(a.deps.Fs))
	}
	if a.deps.Mounts != nil {
		probeOpts = append(probeOpts, probe.WithMounts(a.deps.Mounts))
	}
	if a.deps.ZFS != nil {
		probeOpts = append(probeOpts, probe.WithZFS(a.deps.ZFS))
	}
	if a.deps.EUID != nil {
		probeOpts = append(probeOpts, probe.WithEUID(a.deps.EUID))
	}

	keys := a.deps.Keys
	if keys == nil {
		keys = secureboot.KeyDir{Root: a.flags.root}
	}

	units := service.NewManager(a.deps.Dial, logger)
	signer := secureboot.NewSigner(cfg.Tools.Signer, runner, logger)
	envs := bootenv.NewManager(cfg.Tools.BootEnv, runner, logger)
	return &session{
		config: cfg,
		logger: logger,
		units:  units,
		signer: signer,
		envs:   envs,
		deps: &installer.Deps{
			Config:   cfg,
			Prober:   probe.NewCollector(runner, logger, probeOpts...),
			Packages: pacman.NewManager(runner, logger),
			Store:    artifacts.NewStore(a.artifactFs(), logger),
			BootEnv:  envs,
			Signer:   signer,
			Firmware: a.deps.Firmware,
			Units:    units,
			Keys:     keys,
			Logger:   logger,
		},
	}, nil
}

// artifactFs is where generated files go: the injected filesystem, the host
// root, or the --root staging directory.
func (a *App) artifactFs() afero.Fs {
	base := a.deps.Fs
	if base == nil {
		base = afero.NewOsFs()
	}
	if a.flags.root == "" {
		return base
	}
	return afero.NewBasePathFs(base, a.flags.root)
}

// prompter picks how confirmations are answered.
func (a *App) prompter(assumeYes bool) tui.Prompter {
	if a.deps.Prompter != nil {
		if assumeYes {
			return tui.AssumeYes{}
		}
		return a.deps.Prompter
	}
	interactive := false
	if f, ok := a.deps.Stdin.(*os.File); ok {
		interactive = tui.IsTerminal(f)
	}
	return tui.Select(assumeYes, interactive, a.deps.Stdin, a.deps.Stderr, tui.Accessible())
}

// doctorSources adapts a session for the doctor.
func (s *session) doctorSources() doctor.Sources {
	return doctor.Sources{
		Config:   s.config,
		Prober:   s.deps.Prober,
		Store:    s.deps.Store,
		Firmware: s.deps.Firmware,
		Units:    s.units,
		Signer:   s.signer,
		BootEnv:  s.envs,
		Logger:   s.logger,
	}
}

func (s *session) close() {
	s.units.Close()
}
