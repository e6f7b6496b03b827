// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/huh"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("user aborted")

type (
	// Question is a yes/no confirmation.
	Question struct {
		// Title is the question itself.
		Title string
		// Description explains what answering yes will do.
		Description string
		// Default is the answer preselected in the form.
		Default bool
	}

	// Prompter answers confirmation questions.
	Prompter interface {
		Confirm(ctx context.Context, q Question) (bool, error)
	}

	// FormPrompter asks on the terminal with a huh form.
	FormPrompter struct {
		in         io.Reader
		out        io.Writer
		accessible bool
	}

	// AssumeYes answers yes to every question (--yes).
	AssumeYes struct{}

	// NonInteractive declines every question. It is used when stdin is not a
	// terminal and --yes was not given, so optional destructive steps never
	// run unattended.
	NonInteractive struct{}

	// Scripted replays fixed answers keyed by question title and records the
	// questions asked. Unknown titles get Fallback.
	Scripted struct {
		Answers  map[string]bool
		Fallback bool

		mu    sync.Mutex
		asked []string
	}
)

// NewFormPrompter creates a huh-backed Prompter. accessible switches to the
// plain line-based mode for screen readers and dumb terminals.
func NewFormPrompter(in io.Reader, out io.Writer, accessible bool) *FormPrompter {
	return &FormPrompter{in: in, out: out, accessible: accessible}
}

// Confirm implements Prompter.
func (p *FormPrompter) Confirm(ctx context.Context, q Question) (bool, error) {
	answer := q.Default
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(q.Title).
				Description(q.Description).
				Affirmative("Yes").
				Negative("No").
				Value(&answer),
		),
	).WithAccessible(p.accessible).
		WithInput(p.in).
		WithOutput(p.out)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrCancelled
		}
		return false, fmt.Errorf("prompt %q: %w", q.Title, err)
	}
	return answer, nil
}

// Confirm implements Prompter.
func (AssumeYes) Confirm(context.Context, Question) (bool, error) { return true, nil }

// Confirm implements Prompter.
func (NonInteractive) Confirm(context.Context, Question) (bool, error) { return false, nil }

// Confirm implements Prompter.
func (s *Scripted) Confirm(_ context.Context, q Question) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, q.Title)
	if a, ok := s.Answers[q.Title]; ok {
		return a, nil
	}
	return s.Fallback, nil
}

// Asked returns the titles asked so far, in order.
func (s *Scripted) Asked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.asked))
	copy(out, s.asked)
	return out
}

// Select picks the Prompter for the given flags and terminal state.
func Select(assumeYes, interactive bool, in io.Reader, out io.Writer, accessible bool) Prompter {
	switch {
	case assumeYes:
		return AssumeYes{}
	case !interactive:
		return NonInteractive{}
	default:
		return NewFormPrompter(in, out, accessible)
	}
}
