// SPDX-License-Identifier: MPL-2.0

package pacman

import (
	"context"
	"errors"
	"fmt"

	"github.com/zfsbe/zfsbe/internal/hostexec"

	"github.com/charmbracelet/log"
)

const (
	pacmanBin    = "pacman"
	pacmanKeyBin = "pacman-key"
)

// ErrNoPackages is returned when Install or Remove is called without names.
var ErrNoPackages = errors.New("no packages given")

// Manager runs pacman and pacman-key.
type Manager struct {
	runner hostexec.Runner
	logger *log.Logger
}

// NewManager creates a Manager.
func NewManager(runner hostexec.Runner, logger *log.Logger) *Manager {
	return &Manager{runner: runner, logger: logger}
}

// Install installs pkgs, skipping those already up to date.
func (m *Manager) Install(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return ErrNoPackages
	}
	m.logger.Info("installing packages", "packages", pkgs)
	args := append([]string{"-S", "--needed", "--noconfirm"}, pkgs...)
	if _, err := m.runner.Run(ctx, pacmanBin, args...); err != nil {
		return fmt.Errorf("install %v: %w", pkgs, err)
	}
	return nil
}

// Remove removes pkgs with their unneeded dependencies and backup files.
func (m *Manager) Remove(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return ErrNoPackages
	}
	m.logger.Info("removing packages", "packages", pkgs)
	args := append([]string{"-Rns", "--noconfirm"}, pkgs...)
	if _, err := m.runner.Run(ctx, pacmanBin, args...); err != nil {
		return fmt.Errorf("remove %v: %w", pkgs, err)
	}
	return nil
}

// Installed reports whether pkg is in the local database.
func (m *Manager) Installed(ctx context.Context, pkg string) bool {
	_, err := m.runner.Run(ctx, pacmanBin, "-Q", pkg)
	return err == nil
}

// Missing returns the subset of pkgs that are not installed, preserving order.
func (m *Manager) Missing(ctx context.Context, pkgs ...string) []string {
	var missing []string
	for _, p := range pkgs {
		if !m.Installed(ctx, p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// RefreshDatabases synchronizes the sync databases.
func (m *Manager) RefreshDatabases(ctx context.Context) error {
	if _, err := m.runner.Run(ctx, pacmanBin, "-Sy"); err != nil {
		return fmt.Errorf("refresh databases: %w", err)
	}
	return nil
}

// ImportKey fetches keyID into the pacman keyring and locally signs it.
func (m *Manager) ImportKey(ctx context.Context, keyID string) error {
	if _, err := m.runner.Run(ctx, pacmanKeyBin, "--recv-keys", keyID); err != nil {
		return fmt.Errorf("receive key %s: %w", keyID, err)
	}
	if _, err := m.runner.Run(ctx, pacmanKeyBin, "--lsign-key", keyID); err != nil {
		return fmt.Errorf("sign key %s: %w", keyID, err)
	}
	return nil
}
