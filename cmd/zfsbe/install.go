// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/zfsbe/zfsbe/internal/installer"

	"github.com/spf13/cobra"
)

// planFlags are shared by every command that runs a plan.
type planFlags struct {
	yes    bool
	dryRun bool
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "answer yes to every confirmation")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the steps without running them")
}

func newInstallCommand(app *App) *cobra.Command {
	var (
		pf   planFlags
		opts installer.InstallOptions
	)
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the boot-environment manager, pacman hooks and wrappers",
		Long: `Detect the pool, root dataset, bootloader and EFI system partition, then
add the package repository, install the packages, write the generated
configuration, pacman hooks and wrapper scripts, configure the
boot-environment tool and enable the ZFS units.

Running install again is safe: unchanged files are not rewritten and
pacman.conf is backed up only once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runPlan(cmd, pf, func(d *installer.Deps) installer.Plan {
				return installer.InstallPlan(d, opts)
			})
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVar(&opts.NoRepo, "no-repo", false, "leave pacman.conf alone and do not import the repository key")
	return cmd
}

func newUninstallCommand(app *App) *cobra.Command {
	var (
		pf   planFlags
		opts installer.UninstallOptions
	)
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove everything install created and restore pacman.conf",
		Long: `Disable the units install enabled, delete the generated files, restore
pacman.conf from its backup and remove the installed packages.

Boot environments and the Secure Boot key backup are kept. Pass
--purge-keys to delete the key backup too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runPlan(cmd, pf, func(d *installer.Deps) installer.Plan {
				return installer.UninstallPlan(d, opts)
			})
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVar(&opts.KeepPackages, "keep-packages", false, "do not remove installed packages")
	cmd.Flags().BoolVar(&opts.PurgeKeys, "purge-keys", false, "also delete the Secure Boot key backup")
	return cmd
}

func newSecureBootCommand(app *App) *cobra.Command {
	var (
		pf   planFlags
		opts installer.SecureBootOptions
	)
	cmd := &cobra.Command{
		Use:   "secureboot",
		Short: "Create, back up and enroll Secure Boot keys and sign boot files",
		Long: `Create Secure Boot keys if none exist, back them up, enroll them into the
firmware (which must be in Setup Mode), sign the bootloader and kernels and
verify the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runPlan(cmd, pf, func(d *installer.Deps) installer.Plan {
				o := opts
				o.Microsoft = o.Microsoft || d.Config.SecureBoot.MicrosoftKeys
				o.Bundle = o.Bundle || d.Config.SecureBoot.BundleOutput != ""
				return installer.SecureBootPlan(d, o)
			})
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVar(&opts.Microsoft, "microsoft", false, "also enroll Microsoft's certificates")
	cmd.Flags().BoolVar(&opts.Bundle, "bundle", false, "build a signed unified kernel image")
	return cmd
}

// runPlan opens a session, builds the plan and executes or prints it.
func (a *App) runPlan(cmd *cobra.Command, pf planFlags, build func(*installer.Deps) installer.Plan) error {
	s, err := a.open(cmd.Context())
	if err != nil {
		return a.fail(cmd, err)
	}
	defer s.close()

	plan := build(s.deps)
	if pf.dryRun {
		return installer.DryRun(a.deps.Stdout, plan)
	}

	report, err := installer.NewRunner(a.prompter(pf.yes), s.logger).Execute(cmd.Context(), plan)
	printReport(a.deps.Stdout, report)
	if err != nil {
		return a.fail(cmd, err)
	}
	return nil
}
