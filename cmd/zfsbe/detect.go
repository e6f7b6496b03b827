// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/zfsbe/zfsbe/internal/installer"

	"github.com/spf13/cobra"
)

func newDetectCommand(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Show the detected pool, root dataset, bootloader and EFI system partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.close()

			r, err := installer.Detect(cmd.Context(), s.deps)
			if err != nil {
				return app.fail(cmd, err)
			}

			out := app.deps.Stdout
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}

			fmt.Fprintln(out, TitleStyle.Render("Detected configuration"))
			fmt.Fprintln(out)
			for _, f := range r.Fields() {
				fmt.Fprintf(out, "  %-14s %s %s\n", KeyStyle.Render(f.Name), SuccessStyle.Render(f.Value), sourceStyle.Render("("+string(f.Source)+")"))
			}
			if len(r.Warnings) > 0 {
				fmt.Fprintln(out)
				for _, w := range r.Warnings {
					fmt.Fprintf(out, "  %s %s\n", WarningStyle.Render("!"), w)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
