// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/zfsbe/zfsbe/internal/doctor"
	"github.com/zfsbe/zfsbe/internal/tui"
	"github.com/zfsbe/zfsbe/pkg/types"

	"github.com/spf13/cobra"
)

func newDoctorCommand(app *App) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the host and the installed files without changing anything",
		Long: `Inspect privileges, required tools, firmware, detection, generated files,
pacman hooks, services and signatures, and print a report.

The exit status is 1 when any check failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.close()

			report := doctor.Run(cmd.Context(), s.doctorSources())
			out := report.Markdown()
			if !plain {
				rendered, renderErr := report.Render(tui.MarkdownOptions{})
				if renderErr != nil {
					s.logger.Debug("markdown rendering failed, printing plain", "err", renderErr)
				} else {
					out = rendered
				}
			}
			fmt.Fprint(app.deps.Stdout, out)

			if report.Failed() {
				cmd.SilenceErrors = true
				cmd.SilenceUsage = true
				return &ExitError{Code: types.ExitFailure, Err: fmt.Errorf("%d check(s) failed", report.Count(doctor.StatusFail))}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print raw markdown")
	return cmd
}
