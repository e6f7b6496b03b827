// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"github.com/charmbracelet/glamour"
)

// MarkdownOptions configures RenderMarkdown.
type MarkdownOptions struct {
	// Style is a glamour style name; empty selects one from the terminal.
	Style string
	// Width is the word wrap width (0 for the glamour default).
	Width int
}

// RenderMarkdown renders markdown content for the terminal.
func RenderMarkdown(content string, opts MarkdownOptions) (string, error) {
	rendererOpts := make([]glamour.TermRendererOption, 0, 2)
	if opts.Style != "" {
		rendererOpts = append(rendererOpts, glamour.WithStandardStyle(opts.Style))
	} else {
		rendererOpts = append(rendererOpts, glamour.WithAutoStyle())
	}
	if opts.Width > 0 {
		rendererOpts = append(rendererOpts, glamour.WithWordWrap(opts.Width))
	}

	renderer, err := glamour.NewTermRenderer(rendererOpts...)
	if err != nil {
		return "", err
	}
	return renderer.Render(content)
}
