// SPDX-License-Identifier: MPL-2.0

package pacman

import (
	"path"
	"strings"
)

const (
	// HookDir is where pacman looks for local hooks.
	HookDir = "/etc/pacman.d/hooks"
	// SnapshotHookName runs before every transaction.
	SnapshotHookName = "95-zfsbe-snapshot.hook"
	// SignHookName runs after transactions that touch boot files.
	SignHookName = "99-zfsbe-sign.hook"

	WhenPre  = "PreTransaction"
	WhenPost = "PostTransaction"
)

type (
	// Trigger is one [Trigger] section of a hook.
	Trigger struct {
		Operations []string
		// Type is "Package" or "Path".
		Type    string
		Targets []string
	}

	// Hook is an alpm hook file.
	Hook struct {
		Triggers     []Trigger
		Description  string
		When         string
		Exec         string
		Depends      []string
		AbortOnFail  bool
		NeedsTargets bool
	}
)

// SnapshotHookPath returns the absolute path of the snapshot hook.
func SnapshotHookPath() string { return path.Join(HookDir, SnapshotHookName) }

// SignHookPath returns the absolute path of the signing hook.
func SignHookPath() string { return path.Join(HookDir, SignHookName) }

// SnapshotHook creates a boot environment before any package change.
// AbortOnFail is left off so a failing snapshot never blocks upgrades.
func SnapshotHook(wrapper string) Hook {
	return Hook{
		Triggers: []Trigger{{
			Operations: []string{"Upgrade", "Install", "Remove"},
			Type:       "Package",
			Targets:    []string{"*"},
		}},
		Description: "Creating ZFS boot environment before transaction...",
		When:        WhenPre,
		Exec:        wrapper + " pre-transaction",
	}
}

// SignHook re-signs boot files after kernels or bootloaders change.
func SignHook(wrapper, signer string) Hook {
	return Hook{
		Triggers: []Trigger{
			{
				Operations: []string{"Install", "Upgrade"},
				Type:       "Path",
				Targets: []string{
					"usr/lib/modules/*/vmlinuz",
					"usr/lib/initcpio/*",
					"boot/vmlinuz-*",
					"boot/initramfs-*",
				},
			},
			{
				Operations: []string{"Install", "Upgrade"},
				Type:       "Package",
				Targets:    []string{"systemd", "grub", "refind"},
			},
		},
		Description: "Signing boot files for Secure Boot...",
		When:        WhenPost,
		Exec:        wrapper + " sign-all",
		Depends:     []string{signer},
	}
}

// RenderHook emits h in the alpm-hooks(5) format.
func RenderHook(h Hook) []byte {
	var sb strings.Builder

	sb.WriteString("# Generated by zfsbe. Removed by \"zfsbe uninstall\".\n")
	for _, t := range h.Triggers {
		sb.WriteString("\n[Trigger]\n")
		for _, op := range t.Operations {
			sb.WriteString("Operation = " + op + "\n")
		}
		sb.WriteString("Type = " + t.Type + "\n")
		for _, target := range t.Targets {
			sb.WriteString("Target = " + target + "\n")
		}
	}

	sb.WriteString("\n[Action]\n")
	if h.Description != "" {
		sb.WriteString("Description = " + h.Description + "\n")
	}
	sb.WriteString("When = " + h.When + "\n")
	sb.WriteString("Exec = " + h.Exec + "\n")
	for _, d := range h.Depends {
		sb.WriteString("Depends = " + d + "\n")
	}
	if h.AbortOnFail {
		sb.WriteString("AbortOnFail\n")
	}
	if h.NeedsTargets {
		sb.WriteString("NeedsTargets\n")
	}

	return []byte(sb.String())
}
