// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"

	"github.com/zfsbe/zfsbe/internal/artifacts"
	"github.com/zfsbe/zfsbe/internal/config"
	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/secureboot"

	"github.com/charmbracelet/log"
)

type (
	// Prober observes the host.
	Prober interface {
		Collect(ctx context.Context, policy detect.Policy) detect.Facts
		IsRoot() bool
		HasUEFI() bool
		MissingTools(names ...string) []string
	}

	// PackageManager installs and removes packages.
	PackageManager interface {
		Install(ctx context.Context, pkgs ...string) error
		Remove(ctx context.Context, pkgs ...string) error
		Missing(ctx context.Context, pkgs ...string) []string
		RefreshDatabases(ctx context.Context) error
		ImportKey(ctx context.Context, keyID string) error
	}

	// BootEnvTool configures the boot-environment tool.
	BootEnvTool interface {
		Configure(ctx context.Context, r detect.Resolved) error
	}

	// SigningTool manages Secure Boot keys and signatures.
	SigningTool interface {
		Tool() string
		Status(ctx context.Context) (secureboot.Status, error)
		CreateKeys(ctx context.Context) error
		EnrollKeys(ctx context.Context, microsoft bool) error
		Sign(ctx context.Context, path string) error
		Bundle(ctx context.Context, out, kernel, initramfs string) error
		Verify(ctx context.Context) (secureboot.VerifyResult, error)
	}

	// UnitManager enables and disables systemd units.
	UnitManager interface {
		Enable(ctx context.Context, units ...string) error
		Disable(ctx context.Context, units ...string) error
	}

	// KeyVault keeps the signing key backup.
	KeyVault interface {
		Backup(src, dst string) (bool, error)
		Purge(dst string) error
	}

	// Deps are the collaborators every plan draws from.
	Deps struct {
		Config   *config.Config
		Prober   Prober
		Packages PackageManager
		Store    *artifacts.Store
		BootEnv  BootEnvTool
		Signer   SigningTool
		Firmware secureboot.Firmware
		Units    UnitManager
		Keys     KeyVault
		Logger   *log.Logger
	}
)
