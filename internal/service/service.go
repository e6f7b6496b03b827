// SPDX-License-Identifier: MPL-2.0

// Package service enables and inspects systemd units over D-Bus.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coreos/go-systemd/v22/dbus"
)

// Unit-file states reported by State.
const (
	StateEnabled  = "enabled"
	StateDisabled = "disabled"
	StateStatic   = "static"
	StateNotFound = "not-found"
)

// DefaultUnits are enabled by install so pools import and mount at boot.
var DefaultUnits = []string{"zfs-import-cache.service", "zfs-mount.service", "zfs.target"}

type (
	// Bus is the part of the systemd D-Bus API the Manager uses.
	Bus interface {
		EnableUnitFilesContext(ctx context.Context, files []string, runtime, force bool) (bool, []dbus.EnableUnitFileChange, error)
		DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]dbus.DisableUnitFileChange, error)
		ListUnitFilesByPatternsContext(ctx context.Context, states, patterns []string) ([]dbus.UnitFile, error)
		ReloadContext(ctx context.Context) error
		Close()
	}

	// DialFunc opens a Bus.
	DialFunc func(ctx context.Context) (Bus, error)

	// Manager enables, disables and queries units. The bus connection is
	// opened on first use.
	Manager struct {
		dial   DialFunc
		logger *log.Logger

		mu  sync.Mutex
		bus Bus
	}
)

// SystemBus dials the system manager.
func SystemBus(ctx context.Context) (Bus, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return conn, nil
}

// NewManager creates a Manager. A nil dial uses SystemBus.
func NewManager(dial DialFunc, logger *log.Logger) *Manager {
	if dial == nil {
		dial = SystemBus
	}
	return &Manager{dial: dial, logger: logger}
}

func (m *Manager) conn(ctx context.Context) (Bus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus != nil {
		return m.bus, nil
	}
	bus, err := m.dial(ctx)
	if err != nil {
		return nil, err
	}
	m.bus = bus
	return bus, nil
}

// Close releases the bus connection, if one was opened.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus != nil {
		m.bus.Close()
		m.bus = nil
	}
}

// Enable enables units and reloads the manager.
func (m *Manager) Enable(ctx context.Context, units ...string) error {
	if len(units) == 0 {
		return nil
	}
	bus, err := m.conn(ctx)
	if err != nil {
		return err
	}
	_, changes, err := bus.EnableUnitFilesContext(ctx, units, false, false)
	if err != nil {
		return fmt.Errorf("enable %v: %w", units, err)
	}
	for _, c := range changes {
		m.logger.Debug("unit file change", "type", c.Type, "file", c.Filename, "dest", c.Destination)
	}
	if err := bus.ReloadContext(ctx); err != nil {
		return fmt.Errorf("reload systemd: %w", err)
	}
	m.logger.Info("enabled units", "units", units)
	return nil
}

// Disable disables units and reloads the manager.
func (m *Manager) Disable(ctx context.Context, units ...string) error {
	if len(units) == 0 {
		return nil
	}
	bus, err := m.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := bus.DisableUnitFilesContext(ctx, units, false); err != nil {
		return fmt.Errorf("disable %v: %w", units, err)
	}
	if err := bus.ReloadContext(ctx); err != nil {
		return fmt.Errorf("reload systemd: %w", err)
	}
	m.logger.Info("disabled units", "units", units)
	return nil
}

// State returns the unit-file state of unit, or StateNotFound.
func (m *Manager) State(ctx context.Context, unit string) (string, error) {
	bus, err := m.conn(ctx)
	if err != nil {
		return "", err
	}
	files, err := bus.ListUnitFilesByPatternsContext(ctx, nil, []string{unit})
	if err != nil {
		return "", fmt.Errorf("query %s: %w", unit, err)
	}
	if len(files) == 0 {
		return StateNotFound, nil
	}
	return files[0].Type, nil
}
