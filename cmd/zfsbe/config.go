// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zfsbe/zfsbe/internal/artifacts"
	"github.com/zfsbe/zfsbe/internal/config"
	"github.com/zfsbe/zfsbe/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `zfsbe config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage zfsbe settings",
		Long: `Manage zfsbe settings.

Settings are read from ` + config.ConfigPath("") + ` and can be overridden
with ZFSBE_* environment variables, for example
ZFSBE_OVERRIDES_POOL=rpool.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			showConfig(app.deps.Stdout, app.settingsPath(), cfg)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show settings and generated file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := app.deps.Stdout
			fmt.Fprintf(out, "Settings file: %s\n", app.settingsPath())
			fmt.Fprintf(out, "Generated config: %s\n", artifacts.ConfigPath)
			fmt.Fprintf(out, "Install manifest: %s\n", artifacts.ManifestPath)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := app.settingsPath()
			if app.flags.root != "" {
				path = filepath.Join(app.flags.root, path)
			}
			written, err := config.WriteDefault(path)
			if err != nil {
				return app.fail(cmd, issue.NewErrorContext().
					WithOperation("write default settings").
					WithResource(path).
					WithSuggestion("Run with sudo to write below "+config.DefaultConfigDir).
					Wrap(err).
					BuildError())
			}
			if !written {
				fmt.Fprintf(app.deps.Stdout, "%s %s already exists\n", WarningStyle.Render("-"), path)
				return nil
			}
			fmt.Fprintf(app.deps.Stdout, "%s Created default settings at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective settings as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprint(app.deps.Stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

// settingsPath is --config or the default location.
func (a *App) settingsPath() string {
	if a.flags.configFile != "" {
		return a.flags.configFile
	}
	return config.ConfigPath("")
}

func showConfig(w io.Writer, path string, cfg *config.Config) {
	fmt.Fprintln(w, TitleStyle.Render("Current Settings"))
	fmt.Fprintln(w)

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Settings file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Settings file"), SubtitleStyle.Render("(using defaults)"))
	}

	section := func(name string, rows ...[2]string) {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", KeyStyle.Render(name))
		for _, r := range rows {
			value := r[1]
			if value == "" {
				value = SubtitleStyle.Render("(detect)")
			} else {
				value = SuccessStyle.Render(value)
			}
			fmt.Fprintf(w, "  %s: %s\n", r[0], value)
		}
	}

	d := cfg.Detection
	section("detection",
		[2]string{"pool_candidates", joinNames(d.PoolCandidates)},
		[2]string{"dataset_patterns", strings.Join(d.DatasetPatterns, ", ")},
		[2]string{"esp_candidates", joinNames(d.ESPCandidates)},
		[2]string{"default_bootloader", string(d.DefaultLoader)},
		[2]string{"default_esp", string(d.DefaultESP)},
	)
	o := cfg.Overrides
	section("overrides",
		[2]string{"pool", string(o.Pool)},
		[2]string{"root_dataset", string(o.RootDataset)},
		[2]string{"bootloader", string(o.Bootloader)},
		[2]string{"esp", string(o.ESP)},
	)
	section("packages", [2]string{"install", strings.Join(cfg.Packages.Install, ", ")})
	r := cfg.Repository
	section("repository",
		[2]string{"enabled", fmt.Sprint(r.Enabled)},
		[2]string{"name", r.Name},
		[2]string{"server", r.Server},
		[2]string{"conf_path", r.ConfPath},
	)
	section("services", [2]string{"enable", strings.Join(cfg.Services.Enable, ", ")})
	section("tools",
		[2]string{"boot_env", cfg.Tools.BootEnv},
		[2]string{"signer", cfg.Tools.Signer},
	)
	sb := cfg.SecureBoot
	section("secure_boot",
		[2]string{"enabled", fmt.Sprint(sb.Enabled)},
		[2]string{"key_dir", sb.KeyDir},
		[2]string{"key_backup_dir", sb.KeyBackupDir},
		[2]string{"microsoft_keys", fmt.Sprint(sb.MicrosoftKeys)},
		[2]string{"kernel_glob", sb.KernelGlob},
	)
	section("ui", [2]string{"verbose", fmt.Sprint(cfg.UI.Verbose)})
}

func joinNames[T ~string](items []T) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = string(it)
	}
	return strings.Join(parts, ", ")
}
