// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/zfsbe/zfsbe/internal/artifacts"
	"github.com/zfsbe/zfsbe/internal/tui"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// UninstallOptions tune the uninstall plan.
type UninstallOptions struct {
	// KeepPackages leaves installed packages alone.
	KeepPackages bool
	// PurgeKeys also deletes the signing key backup.
	PurgeKeys bool
}

type uninstall struct {
	d        *Deps
	opts     UninstallOptions
	manifest *artifacts.Manifest
}

// UninstallPlan builds the uninstall plan.
func UninstallPlan(d *Deps, opts UninstallOptions) Plan {
	un := &uninstall{d: d, opts: opts}

	steps := []Step{
		rootStep(d, "uninstall"),
		{Name: "load install manifest", Kind: KindPrecondition, Run: un.loadManifest},
		{
			Name: "confirm uninstall",
			Kind: KindGate,
			Confirm: &tui.Question{
				Title:       "Remove zfsbe from this system?",
				Description: "Generated files and hooks are deleted and edited files are restored from backup.",
			},
		},
		{
			Name: "disable services",
			Kind: KindAction,
			Confirm: &tui.Question{
				Title:       "Disable the ZFS units enabled by install?",
				Description: "Pools may no longer import automatically at boot.",
			},
			Run: un.disableServices,
		},
		{Name: "remove generated files", Kind: KindAction, Run: un.removeFiles},
		{Name: "restore backups", Kind: KindAction, Run: un.restoreBackups},
	}

	if !opts.KeepPackages {
		steps = append(steps, Step{
			Name: "remove packages",
			Kind: KindAction,
			Confirm: &tui.Question{
				Title:       "Remove the packages installed by zfsbe?",
				Description: "Boot environments themselves are kept.",
			},
			Run: un.removePackages,
		})
	}
	if opts.PurgeKeys {
		steps = append(steps, Step{
			Name: "delete key backup",
			Kind: KindAction,
			Confirm: &tui.Question{
				Title:       "Delete the Secure Boot key backup at " + d.Config.SecureBoot.KeyBackupDir + "?",
				Description: "Without it, keys cannot be recovered if the key directory is lost.",
			},
			Run: un.purgeKeys,
		})
	}
	steps = append(steps, Step{Name: "delete install manifest", Kind: KindAction, Run: un.deleteManifest})

	return Plan{Name: "uninstall", Steps: steps}
}

// loadManifest never fails: without a manifest the default layout is used.
func (un *uninstall) loadManifest(context.Context) error {
	m, err := artifacts.LoadManifest(un.d.Store.Fs(), artifacts.ManifestPath)
	if err == nil {
		un.manifest = m
		return nil
	}
	if !errors.Is(err, artifacts.ErrManifestNotFound) {
		un.d.Logger.Warn("install manifest unreadable, using default layout", "err", err)
	} else {
		un.d.Logger.Warn("no install manifest, using default layout")
	}
	cfg := un.d.Config
	un.manifest = artifacts.DefaultManifest(cfg.Repository.ConfPath, cfg.Services.Enable)
	un.manifest.AddPackages(cfg.Packages.Install...)
	return nil
}

func (un *uninstall) disableServices(ctx context.Context) error {
	if len(un.manifest.Units) == 0 {
		return skip("no units recorded")
	}
	return un.d.Units.Disable(ctx, un.manifest.Units...)
}

func (un *uninstall) removeFiles(context.Context) error {
	return un.d.Store.Remove(un.manifest)
}

func (un *uninstall) restoreBackups(context.Context) error {
	var result *multierror.Error
	restored := 0
	for _, b := range un.manifest.Backups {
		err := un.d.Store.Restore(b.Original)
		switch {
		case err == nil:
			restored++
		case errors.Is(err, artifacts.ErrNoBackup):
			un.d.Logger.Debug("no backup", "path", b.Original)
		default:
			result = multierror.Append(result, err)
		}
	}
	if result.ErrorOrNil() == nil && restored == 0 {
		return skip("nothing to restore")
	}
	return result.ErrorOrNil()
}

func (un *uninstall) removePackages(ctx context.Context) error {
	if len(un.manifest.Packages) == 0 {
		return skip("no packages recorded")
	}
	missing := un.d.Packages.Missing(ctx, un.manifest.Packages...)
	var present []string
	for _, p := range un.manifest.Packages {
		if !slices.Contains(missing, p) {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return skip("packages already removed")
	}
	return un.d.Packages.Remove(ctx, present...)
}

func (un *uninstall) purgeKeys(context.Context) error {
	dir := un.manifest.KeyBackup
	if dir == "" {
		dir = un.d.Config.SecureBoot.KeyBackupDir
	}
	if err := un.d.Keys.Purge(dir); err != nil {
		return fmt.Errorf("delete %s: %w", dir, err)
	}
	return nil
}

func (un *uninstall) deleteManifest(context.Context) error {
	fs := un.d.Store.Fs()
	if ok, _ := afero.Exists(fs, artifacts.ManifestPath); !ok {
		return skip("no manifest on disk")
	}
	if err := fs.Remove(artifacts.ManifestPath); err != nil {
		return fmt.Errorf("delete manifest: %w", err)
	}
	// a kept key backup keeps the manifest directory non-empty
	return un.d.Store.PruneDirs(un.manifest.Dirs)
}
