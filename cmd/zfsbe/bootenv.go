// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/zfsbe/zfsbe/internal/bootenv"
	"github.com/zfsbe/zfsbe/internal/issue"
	"github.com/zfsbe/zfsbe/internal/tui"

	"github.com/spf13/cobra"
)

// errDestroyActive is returned when destroy targets the running environment.
var errDestroyActive = errors.New("boot environment is active")

// newBootEnvCommand creates the `zfsbe be` command tree.
func newBootEnvCommand(app *App) *cobra.Command {
	beCmd := &cobra.Command{
		Use:   "be",
		Short: "List, create, activate and destroy boot environments",
		Long: `Manage boot environments through the configured tool (zectl by default).

The pacman hook creates a boot environment before every transaction; these
commands are for manual snapshots and rollbacks.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	beCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List boot environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withBootEnvs(cmd, func(m *bootenv.Manager) error {
				entries, err := m.List(cmd.Context())
				if err != nil {
					return bootEnvError("list boot environments", "", err)
				}
				printBootEnvs(app, entries)
				return nil
			})
		},
	})

	beCmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Snapshot the running system as a new boot environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withBootEnvs(cmd, func(m *bootenv.Manager) error {
				if err := m.Create(cmd.Context(), args[0]); err != nil {
					return bootEnvError("create boot environment", args[0], err)
				}
				fmt.Fprintf(app.deps.Stdout, "%s Created boot environment %s\n", SuccessStyle.Render("✓"), args[0])
				return nil
			})
		},
	})

	beCmd.AddCommand(&cobra.Command{
		Use:   "activate <name>",
		Short: "Boot into a boot environment on the next reboot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withBootEnvs(cmd, func(m *bootenv.Manager) error {
				if err := m.Activate(cmd.Context(), args[0]); err != nil {
					return bootEnvError("activate boot environment", args[0], err)
				}
				fmt.Fprintf(app.deps.Stdout, "%s %s is used on the next boot\n", SuccessStyle.Render("✓"), args[0])
				return nil
			})
		},
	})

	var yes bool
	destroyCmd := &cobra.Command{
		Use:   "destroy <name>",
		Short: "Delete a boot environment and its datasets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return app.withBootEnvs(cmd, func(m *bootenv.Manager) error {
				entries, err := m.List(cmd.Context())
				if err != nil {
					return bootEnvError("list boot environments", "", err)
				}
				for _, e := range entries {
					if e.Name == name && e.Active {
						return issue.NewErrorContext().
							WithOperation("destroy boot environment").
							WithResource(name).
							WithSuggestion("Activate another environment, reboot into it, then destroy " + name).
							Wrap(errDestroyActive).
							BuildError()
					}
				}

				ok, err := app.prompter(yes).Confirm(cmd.Context(), tui.Question{
					Title:       "Destroy boot environment " + name + "?",
					Description: "Its datasets and snapshots are deleted permanently.",
				})
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(app.deps.Stdout, "%s kept %s\n", WarningStyle.Render("-"), name)
					return nil
				}
				if err := m.Destroy(cmd.Context(), name); err != nil {
					return bootEnvError("destroy boot environment", name, err)
				}
				fmt.Fprintf(app.deps.Stdout, "%s Destroyed boot environment %s\n", SuccessStyle.Render("✓"), name)
				return nil
			})
		},
	}
	destroyCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	beCmd.AddCommand(destroyCmd)

	return beCmd
}

// withBootEnvs opens a session and runs fn with its boot-environment manager.
func (a *App) withBootEnvs(cmd *cobra.Command, fn func(*bootenv.Manager) error) error {
	s, err := a.open(cmd.Context())
	if err != nil {
		return a.fail(cmd, err)
	}
	defer s.close()
	return a.fail(cmd, fn(s.envs))
}

func bootEnvError(op, name string, err error) error {
	return issue.NewErrorContext().
		WithOperation(op).
		WithResource(name).
		WithSuggestion("Run 'zfsbe doctor' to check the boot-environment tool").
		Wrap(err).
		BuildError()
}

func printBootEnvs(app *App, entries []bootenv.Entry) {
	out := app.deps.Stdout
	if len(entries) == 0 {
		fmt.Fprintln(out, SubtitleStyle.Render("No boot environments."))
		return
	}
	fmt.Fprintln(out, TitleStyle.Render("Boot environments"))
	fmt.Fprintln(out)
	for _, e := range entries {
		var flags string
		switch {
		case e.Active && e.NextBoot:
			flags = SuccessStyle.Render("active, next boot")
		case e.Active:
			flags = SuccessStyle.Render("active")
		case e.NextBoot:
			flags = WarningStyle.Render("next boot")
		}
		fmt.Fprintf(out, "  %-24s %-10s %s %s\n", KeyStyle.Render(e.Name), e.Mountpoint, sourceStyle.Render(e.Creation), flags)
	}
}
