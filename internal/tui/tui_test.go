// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"bytes"
	"slices"
	"strings"
	"testing"
)

func TestFixedPrompters(t *testing.T) {
	t.Parallel()

	q := Question{Title: "Remove packages?"}
	if ok, err := (AssumeYes{}).Confirm(t.Context(), q); !ok || err != nil {
		t.Errorf("AssumeYes = %v, %v", ok, err)
	}
	if ok, err := (NonInteractive{}).Confirm(t.Context(), q); ok || err != nil {
		t.Errorf("NonInteractive = %v, %v", ok, err)
	}
}

func TestScripted(t *testing.T) {
	t.Parallel()

	s := &Scripted{Answers: map[string]bool{"Edit pacman.conf?": false}, Fallback: true}
	if ok, _ := s.Confirm(t.Context(), Question{Title: "Edit pacman.conf?"}); ok {
		t.Error("scripted answer ignored")
	}
	if ok, _ := s.Confirm(t.Context(), Question{Title: "Enable units?"}); !ok {
		t.Error("fallback ignored")
	}
	if !slices.Equal(s.Asked(), []string{"Edit pacman.conf?", "Enable units?"}) {
		t.Errorf("Asked() = %v", s.Asked())
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, ok := Select(true, false, nil, &buf, false).(AssumeYes); !ok {
		t.Error("--yes should select AssumeYes")
	}
	if _, ok := Select(false, false, nil, &buf, false).(NonInteractive); !ok {
		t.Error("no terminal should select NonInteractive")
	}
	if _, ok := Select(false, true, strings.NewReader(""), &buf, true).(*FormPrompter); !ok {
		t.Error("terminal should select FormPrompter")
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	out, err := RenderMarkdown("# Doctor\n\n- pool: zroot\n", MarkdownOptions{Style: "notty", Width: 60})
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if !strings.Contains(out, "Doctor") || !strings.Contains(out, "zroot") {
		t.Errorf("RenderMarkdown() = %q", out)
	}
}
