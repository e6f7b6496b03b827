// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the zfsbe command tree.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/zfsbe/zfsbe/internal/config"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zfsbe",
		Short: "ZFS boot environments and Secure Boot signing for Arch-based systems",
		Long: TitleStyle.Render("zfsbe") + SubtitleStyle.Render(" - ZFS boot environments and Secure Boot signing") + `

zfsbe detects your ZFS pool, root dataset, bootloader and EFI system
partition, then installs a boot-environment manager with a pacman hook that
snapshots the system before every transaction. Optionally it sets up
Secure Boot keys and keeps kernels and loaders signed.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Check the host:        zfsbe doctor
  2. Review detection:      zfsbe detect
  3. Install:               sudo zfsbe install
  4. Set up Secure Boot:    sudo zfsbe secureboot

` + SubtitleStyle.Render("Settings:") + `
  ` + config.ConfigPath("") + ` (see 'zfsbe config init')`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging (also ZFSBE_DEBUG=1)")
	flags.StringVar(&app.flags.configFile, "config", "", "settings file (default is "+config.ConfigPath("")+")")
	flags.StringVar(&app.flags.root, "root", "", "write generated files below this directory instead of /")

	rootCmd.AddCommand(
		newInstallCommand(app),
		newUninstallCommand(app),
		newSecureBootCommand(app),
		newDoctorCommand(app),
		newDetectCommand(app),
		newConfigCommand(app),
		newBootEnvCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI against the host. It is called by main.main.
func Execute() {
	rootCmd := NewRootCommand(NewApp(Dependencies{}))
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(int(exitCodeFor(err)))
	}
}
