// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/zfsbe/zfsbe/internal/installer"
	"github.com/zfsbe/zfsbe/internal/issue"

	"github.com/spf13/cobra"
)

// fail renders err with its suggestions and catalog help, then returns it as
// an ExitError so fang does not print it a second time.
func (a *App) fail(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	stderr := a.deps.Stderr
	fmt.Fprintln(stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.flags.verbose))

	if id := issue.IssueOf(err); id != 0 {
		if entry := issue.Get(id); entry != nil {
			if rendered, renderErr := entry.Render("dark"); renderErr == nil {
				fmt.Fprint(stderr, rendered)
			}
		}
	}
	return &ExitError{Code: exitCodeFor(err), Err: err}
}

// formatErrorForDisplay formats an error for the user. ActionableErrors list
// their suggestions; verbose mode adds the error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// printReport writes one line per step and a summary.
func printReport(w io.Writer, report *installer.Report) {
	if report == nil || len(report.Results) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render(report.Plan))
	for _, res := range report.Results {
		switch res.Outcome {
		case installer.OutcomeDone:
			fmt.Fprintf(w, "  %s %s\n", SuccessStyle.Render("✓"), res.Name)
		case installer.OutcomeSkipped:
			fmt.Fprintf(w, "  %s %s %s\n", WarningStyle.Render("-"), res.Name, SubtitleStyle.Render("(skipped)"))
		case installer.OutcomeFailed:
			fmt.Fprintf(w, "  %s %s: %v\n", ErrorStyle.Render("✗"), res.Name, res.Err)
		}
	}

	failed := report.Count(installer.OutcomeFailed)
	switch {
	case failed > 0:
		fmt.Fprintln(w, WarningStyle.Render(fmt.Sprintf("\nFinished with %d warning(s). Run 'zfsbe doctor' to review.", failed)))
	default:
		fmt.Fprintln(w, SuccessStyle.Render("\nDone."))
	}
}
