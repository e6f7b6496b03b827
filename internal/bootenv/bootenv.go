// SPDX-License-Identifier: MPL-2.0

// Package bootenv drives the boot-environment tool (zectl by default).
package bootenv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/hostexec"
	"github.com/zfsbe/zfsbe/pkg/types"

	"github.com/charmbracelet/log"
)

// ErrEmptyName is returned for operations that need a boot environment name.
var ErrEmptyName = errors.New("boot environment name is empty")

type (
	// Entry is one row of "zectl list -H".
	Entry struct {
		Name       string
		Active     bool // active now
		NextBoot   bool // active on reboot
		Mountpoint string
		Creation   string
	}

	// Manager runs the boot-environment tool.
	Manager struct {
		tool   string
		runner hostexec.Runner
		logger *log.Logger
	}
)

// NewManager creates a Manager for tool, defaulting to zectl.
func NewManager(tool string, runner hostexec.Runner, logger *log.Logger) *Manager {
	if tool == "" {
		tool = "zectl"
	}
	return &Manager{tool: tool, runner: runner, logger: logger}
}

// Tool returns the binary name.
func (m *Manager) Tool() string { return m.tool }

// List returns every boot environment.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	res, err := m.runner.Run(ctx, m.tool, "list", "-H")
	if err != nil {
		return nil, fmt.Errorf("list boot environments: %w", err)
	}
	return parseList(res.Stdout), nil
}

func parseList(out string) []Entry {
	var entries []Entry
	for _, line := range hostexec.Lines(out) {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		e := Entry{Name: fields[0]}
		if len(fields) > 1 {
			e.Active = strings.Contains(fields[1], "N")
			e.NextBoot = strings.Contains(fields[1], "R")
		}
		if len(fields) > 2 {
			e.Mountpoint = fields[2]
		}
		if len(fields) > 3 {
			e.Creation = strings.Join(fields[3:], " ")
		}
		entries = append(entries, e)
	}
	return entries
}

// Create creates a boot environment named name.
func (m *Manager) Create(ctx context.Context, name string) error {
	return m.named(ctx, "create", name)
}

// Activate makes name the boot environment used on next boot.
func (m *Manager) Activate(ctx context.Context, name string) error {
	return m.named(ctx, "activate", name)
}

// Destroy removes the boot environment name.
func (m *Manager) Destroy(ctx context.Context, name string) error {
	return m.named(ctx, "destroy", name)
}

func (m *Manager) named(ctx context.Context, verb, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if _, err := m.runner.Run(ctx, m.tool, verb, name); err != nil {
		return fmt.Errorf("%s boot environment %s: %w", verb, name, err)
	}
	m.logger.Info("boot environment "+verb, "name", name)
	return nil
}

// SetProperty sets a tool property ("bootloader=grub").
func (m *Manager) SetProperty(ctx context.Context, key, value string) error {
	if _, err := m.runner.Run(ctx, m.tool, "set", key+"="+value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// GetProperty returns a tool property value.
func (m *Manager) GetProperty(ctx context.Context, key string) (string, error) {
	res, err := m.runner.Run(ctx, m.tool, "get", "-H", key)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	lines := hostexec.Lines(res.Stdout)
	if len(lines) == 0 {
		return "", nil
	}
	fields := strings.Fields(lines[0])
	return fields[len(fields)-1], nil
}

// PluginName maps a bootloader to the tool's plugin name. ok is false when
// the tool has no plugin for it.
func PluginName(v types.BootloaderVariant) (name string, ok bool) {
	switch v {
	case types.BootloaderSystemdBoot:
		return "systemdboot", true
	case types.BootloaderGrub:
		return "grub", true
	default:
		return "", false
	}
}

// Configure points the tool at the resolved bootloader and ESP. rEFInd has
// no plugin; it is reported and skipped.
func (m *Manager) Configure(ctx context.Context, r detect.Resolved) error {
	plugin, ok := PluginName(r.Bootloader)
	if !ok {
		m.logger.Warn("no boot environment plugin for bootloader, skipping configuration",
			"bootloader", r.Bootloader, "tool", m.tool)
		return nil
	}
	if err := m.SetProperty(ctx, "bootloader", plugin); err != nil {
		return err
	}
	if r.Bootloader == types.BootloaderSystemdBoot {
		if err := m.SetProperty(ctx, "systemdboot:efi", string(r.ESP)); err != nil {
			return err
		}
	}
	m.logger.Info("boot environment tool configured", "bootloader", plugin, "esp", r.ESP)
	return nil
}
