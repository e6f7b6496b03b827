// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/zfsbe/zfsbe/internal/tui"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
)

// Step kinds.
const (
	// KindPrecondition steps abort the plan on error.
	KindPrecondition Kind = "precondition"
	// KindAction steps record errors as warnings and the plan continues.
	KindAction Kind = "action"
	// KindGate steps are confirmations; declining skips the rest of the plan.
	KindGate Kind = "gate"
)

// Step outcomes.
const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

type (
	// Kind classifies how a step's failure is handled.
	Kind string

	// Outcome is what happened to a step.
	Outcome string

	// Step is one unit of work.
	Step struct {
		Name    string
		Kind    Kind
		Confirm *tui.Question
		// Run may be nil for gates.
		Run func(ctx context.Context) error
	}

	// Plan is an ordered list of steps.
	Plan struct {
		Name  string
		Steps []Step
	}

	// StepResult records one executed, skipped or failed step.
	StepResult struct {
		Name    string
		Outcome Outcome
		Err     error
	}

	// Report is the outcome of executing a plan.
	Report struct {
		Plan    string
		Results []StepResult
		errs    *multierror.Error
	}

	// PreconditionError is returned when a precondition step fails.
	PreconditionError struct {
		Step string
		Err  error
	}

	// Runner executes plans.
	Runner struct {
		prompter tui.Prompter
		logger   *log.Logger
	}
)

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the step's error.
func (e *PreconditionError) Unwrap() error { return e.Err }

// IsPrecondition reports whether err came from a failed precondition step.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// NewRunner creates a Runner.
func NewRunner(prompter tui.Prompter, logger *log.Logger) *Runner {
	return &Runner{prompter: prompter, logger: logger}
}

// Execute runs plan. The returned error is non-nil only when a precondition
// failed, the user cancelled, or ctx was cancelled. Recoverable failures are
// available from Report.Err.
func (r *Runner) Execute(ctx context.Context, plan Plan) (*Report, error) {
	report := &Report{Plan: plan.Name}

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s interrupted before %q: %w", plan.Name, step.Name, err)
		}

		if step.Confirm != nil {
			ok, err := r.prompter.Confirm(ctx, *step.Confirm)
			if err != nil {
				if errors.Is(err, tui.ErrCancelled) {
					return report, fmt.Errorf("%s: %w", plan.Name, err)
				}
				return report, fmt.Errorf("confirm %q: %w", step.Name, err)
			}
			if !ok {
				r.logger.Info("skipped", "step", step.Name, "reason", "declined")
				report.add(step.Name, OutcomeSkipped, nil)
				if step.Kind == KindGate {
					for _, rest := range plan.Steps[i+1:] {
						report.add(rest.Name, OutcomeSkipped, nil)
					}
					return report, nil
				}
				continue
			}
		}

		if step.Run == nil {
			report.add(step.Name, OutcomeDone, nil)
			continue
		}

		r.logger.Debug("running", "step", step.Name)
		err := step.Run(ctx)
		switch {
		case err == nil:
			report.add(step.Name, OutcomeDone, nil)
		case errors.Is(err, errSkip):
			r.logger.Info("skipped", "step", step.Name, "reason", skipReason(err))
			report.add(step.Name, OutcomeSkipped, nil)
		case step.Kind == KindPrecondition:
			report.add(step.Name, OutcomeFailed, err)
			return report, &PreconditionError{Step: step.Name, Err: err}
		default:
			r.logger.Warn("step failed, continuing", "step", step.Name, "err", err)
			report.add(step.Name, OutcomeFailed, err)
			report.errs = multierror.Append(report.errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}

	return report, nil
}

// DryRun writes the plan's step names without running anything.
func DryRun(w io.Writer, plan Plan) error {
	if _, err := fmt.Fprintf(w, "%s plan:\n", plan.Name); err != nil {
		return err
	}
	for i, step := range plan.Steps {
		suffix := ""
		switch {
		case step.Kind == KindPrecondition:
			suffix = " (required)"
		case step.Confirm != nil:
			suffix = " (asks first)"
		}
		if _, err := fmt.Fprintf(w, "  %2d. %s%s\n", i+1, step.Name, suffix); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) add(name string, outcome Outcome, err error) {
	r.Results = append(r.Results, StepResult{Name: name, Outcome: outcome, Err: err})
}

// Err returns every recoverable failure combined, or nil.
func (r *Report) Err() error {
	return r.errs.ErrorOrNil()
}

// Outcome returns the outcome of the named step, or "" when it never ran.
func (r *Report) Outcome(name string) Outcome {
	for _, res := range r.Results {
		if res.Name == name {
			return res.Outcome
		}
	}
	return ""
}

// Count returns how many steps ended with outcome.
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

var errSkip = errors.New("step skipped")

// skip tells the runner the step had nothing to do.
func skip(reason string) error {
	return fmt.Errorf("%w: %s", errSkip, reason)
}

func skipReason(err error) string {
	msg := err.Error()
	prefix := errSkip.Error() + ": "
	if len(msg) > len(prefix) {
		return msg[len(prefix):]
	}
	return msg
}
