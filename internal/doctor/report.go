// SPDX-License-Identifier: MPL-2.0

package doctor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zfsbe/zfsbe/internal/artifacts"
	"github.com/zfsbe/zfsbe/internal/tui"

	"github.com/spf13/afero"
)

var errMissing = errors.New("missing")

var statusMarks = map[Status]string{
	StatusOK:   "✓ ok",
	StatusInfo: "· info",
	StatusWarn: "! warn",
	StatusFail: "✗ FAIL",
}

// Markdown renders the report as a markdown document.
func (r *Report) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# zfsbe doctor\n\n")

	for _, sec := range r.Sections {
		writeSection(&sb, sec)
	}

	writeSummary(&sb, r)
	return sb.String()
}

// Render renders the report for the terminal with glamour.
func (r *Report) Render(opts tui.MarkdownOptions) (string, error) {
	return tui.RenderMarkdown(r.Markdown(), opts)
}

func writeSection(sb *strings.Builder, sec Section) {
	fmt.Fprintf(sb, "## %s\n\n", sec.Title)
	if len(sec.Checks) == 0 {
		sb.WriteString("- Nothing to check\n\n")
	} else {
		sb.WriteString("| Check | Status | Detail |\n")
		sb.WriteString("|---|---|---|\n")
		for _, c := range sec.Checks {
			fmt.Fprintf(sb, "| %s | %s | %s |\n", escapeCell(c.Name), statusMarks[c.Status], escapeCell(c.Detail))
		}
		sb.WriteString("\n")
	}

	if sec.Output != "" {
		sb.WriteString("```\n")
		sb.WriteString(sec.Output)
		sb.WriteString("\n```\n\n")
	}
}

func writeSummary(sb *strings.Builder, r *Report) {
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(sb, "- %d ok, %d info, %d warnings, %d failures\n",
		r.Count(StatusOK), r.Count(StatusInfo), r.Count(StatusWarn), r.Count(StatusFail))
	if r.Failed() {
		sb.WriteString("- Fix the failed checks before running `zfsbe install`.\n")
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func readFile(s *artifacts.Store, path string) ([]byte, error) {
	if !s.Exists(path) {
		return nil, fmt.Errorf("%w: %s", errMissing, path)
	}
	return afero.ReadFile(s.Fs(), path)
}
