// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zfsbe/zfsbe/internal/artifacts"
	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/pacman"
	"github.com/zfsbe/zfsbe/internal/secureboot"
	"github.com/zfsbe/zfsbe/internal/tui"
)

// InstallOptions tune the install plan.
type InstallOptions struct {
	// NoRepo leaves pacman.conf alone.
	NoRepo bool
}

// install carries state between install steps.
type install struct {
	d        *Deps
	opts     InstallOptions
	resolved detect.Resolved
	manifest *artifacts.Manifest
}

// InstallPlan builds the install plan.
func InstallPlan(d *Deps, opts InstallOptions) Plan {
	in := &install{d: d, opts: opts}
	cfg := d.Config

	steps := []Step{
		rootStep(d, "install"),
		toolsStep(d, "zfs", "zpool", "pacman"),
		uefiStep(d),
		detectStep(d, &in.resolved),
		{Name: "start install manifest", Kind: KindPrecondition, Run: in.startManifest},
	}

	if cfg.Repository.Enabled && !opts.NoRepo {
		steps = append(steps,
			Step{
				Name: "add package repository",
				Kind: KindAction,
				Confirm: &tui.Question{
					Title:       fmt.Sprintf("Add the [%s] repository to %s?", cfg.Repository.Name, cfg.Repository.ConfPath),
					Description: "The original file is backed up once to " + artifacts.BackupPath(cfg.Repository.ConfPath) + ".",
					Default:     true,
				},
				Run: in.addRepository,
			},
			Step{Name: "import repository key", Kind: KindAction, Run: in.importKey},
		)
	}

	steps = append(steps,
		Step{
			Name: "install packages",
			Kind: KindAction,
			Confirm: &tui.Question{
				Title:       "Install " + strings.Join(cfg.Packages.Install, ", ") + "?",
				Description: "Packages already installed are left as they are.",
				Default:     true,
			},
			Run: in.installPackages,
		},
		Step{Name: "write generated files", Kind: KindAction, Run: in.writeFiles},
		Step{Name: "configure boot environment tool", Kind: KindAction, Run: in.configureBootEnv},
		Step{Name: "enable services", Kind: KindAction, Run: in.enableServices},
		Step{Name: "save install manifest", Kind: KindAction, Run: in.saveManifest},
	)

	return Plan{Name: "install", Steps: steps}
}

func (in *install) startManifest(context.Context) error {
	in.manifest = artifacts.NewManifest(in.resolved)
	return nil
}

func (in *install) addRepository(context.Context) error {
	repo := in.d.Config.Repository
	path := repo.ConfPath
	changed, err := in.d.Store.Edit(path, func(b []byte) ([]byte, bool) {
		return pacman.EnsureRepository(b, pacman.Repository{Name: repo.Name, Server: repo.Server})
	})
	if err != nil {
		return err
	}
	if !changed {
		return skip(fmt.Sprintf("[%s] already in %s", repo.Name, path))
	}
	in.manifest.AddBackup(path)
	return nil
}

func (in *install) importKey(ctx context.Context) error {
	if key := in.d.Config.Repository.KeyID; key != "" {
		if err := in.d.Packages.ImportKey(ctx, key); err != nil {
			return err
		}
	}
	return in.d.Packages.RefreshDatabases(ctx)
}

func (in *install) installPackages(ctx context.Context) error {
	missing := in.d.Packages.Missing(ctx, in.d.Config.Packages.Install...)
	if len(missing) == 0 {
		return skip("all packages already installed")
	}
	if err := in.d.Packages.Install(ctx, missing...); err != nil {
		return err
	}
	in.manifest.AddPackages(missing...)
	return nil
}

// Settings derives the generated-config settings from loaded settings and r.
func Settings(d *Deps, r detect.Resolved) artifacts.Settings {
	cfg := d.Config
	return artifacts.Settings{
		BootEnvTool:  cfg.Tools.BootEnv,
		Signer:       cfg.Tools.Signer,
		SecureBoot:   cfg.SecureBoot.Enabled,
		BootFiles:    secureboot.LoaderPaths(r.Bootloader, r.ESP),
		KernelGlob:   cfg.SecureBoot.KernelGlob,
		BundleOutput: cfg.SecureBoot.BundleOutput,
	}
}

func (in *install) writeFiles(context.Context) error {
	files, err := artifacts.Generate(in.resolved, Settings(in.d, in.resolved))
	if err != nil {
		return err
	}
	return in.d.Store.Apply(files, in.manifest)
}

func (in *install) configureBootEnv(ctx context.Context) error {
	return in.d.BootEnv.Configure(ctx, in.resolved)
}

func (in *install) enableServices(ctx context.Context) error {
	units := in.d.Config.Services.Enable
	if len(units) == 0 {
		return skip("no units configured")
	}
	if err := in.d.Units.Enable(ctx, units...); err != nil {
		return err
	}
	in.manifest.AddUnits(units...)
	return nil
}

func (in *install) saveManifest(context.Context) error {
	fs := in.d.Store.Fs()
	prev, err := artifacts.LoadManifest(fs, artifacts.ManifestPath)
	switch {
	case err == nil:
		in.manifest.Merge(prev)
	case errors.Is(err, artifacts.ErrManifestNotFound):
	default:
		in.d.Logger.Warn("ignoring unreadable manifest", "err", err)
	}
	return in.d.Store.SaveManifest(in.manifest)
}
