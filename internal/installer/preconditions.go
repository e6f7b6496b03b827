// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/issue"
)

var (
	// ErrNotRoot is returned when a plan needs root and the process is not.
	ErrNotRoot = errors.New("must run as root")
	// ErrToolMissing is returned when a required binary is not on PATH.
	ErrToolMissing = errors.New("required tools missing")
	// ErrNoUEFI is returned when the host did not boot through UEFI.
	ErrNoUEFI = errors.New("system is not booted in UEFI mode")
	// ErrNotSetupMode is returned when keys cannot be enrolled.
	ErrNotSetupMode = errors.New("firmware is not in Secure Boot setup mode")
	// ErrUnsigned is returned when verification finds unsigned boot files.
	ErrUnsigned = errors.New("unsigned boot files")
)

func rootStep(d *Deps, command string) Step {
	return Step{
		Name: "check privileges",
		Kind: KindPrecondition,
		Run: func(context.Context) error {
			if d.Prober.IsRoot() {
				return nil
			}
			return issue.NewErrorContext().
				WithOperation("check privileges").
				WithSuggestion("Run with sudo: sudo zfsbe " + command).
				WithIssue(issue.NotRootId).
				Wrap(ErrNotRoot).
				BuildError()
		},
	}
}

func toolsStep(d *Deps, tools ...string) Step {
	return Step{
		Name: "check required tools",
		Kind: KindPrecondition,
		Run: func(context.Context) error {
			missing := d.Prober.MissingTools(tools...)
			if len(missing) == 0 {
				return nil
			}
			return issue.NewErrorContext().
				WithOperation("check required tools").
				WithResource(strings.Join(missing, ", ")).
				WithSuggestion("Install the missing tools with pacman and retry").
				WithIssue(issue.ToolMissingId).
				Wrap(fmt.Errorf("%w: %s", ErrToolMissing, strings.Join(missing, ", "))).
				BuildError()
		},
	}
}

func uefiStep(d *Deps) Step {
	return Step{
		Name: "check UEFI firmware",
		Kind: KindPrecondition,
		Run: func(context.Context) error {
			if d.Prober.HasUEFI() {
				return nil
			}
			return issue.NewErrorContext().
				WithOperation("check UEFI firmware").
				WithResource("/sys/firmware/efi").
				WithSuggestion("Boot the installation in UEFI mode, not legacy BIOS/CSM").
				WithIssue(issue.NoUEFIId).
				Wrap(ErrNoUEFI).
				BuildError()
		},
	}
}

// detectStep resolves the host configuration into *out.
func detectStep(d *Deps, out *detect.Resolved) Step {
	return Step{
		Name: "detect configuration",
		Kind: KindPrecondition,
		Run: func(ctx context.Context) error {
			r, err := Detect(ctx, d)
			if err != nil {
				return err
			}
			*out = r
			return nil
		},
	}
}

// Detect collects facts and resolves them with the configured policy.
// Warnings are logged.
func Detect(ctx context.Context, d *Deps) (detect.Resolved, error) {
	policy := detect.PolicyFromConfig(d.Config)
	facts := d.Prober.Collect(ctx, policy)

	r, err := detect.Resolve(facts, policy)
	if err != nil {
		if errors.Is(err, detect.ErrPoolNotFound) {
			return detect.Resolved{}, issue.NewErrorContext().
				WithOperation("detect storage pool").
				WithSuggestion("Import the pool: zpool import <pool>").
				WithSuggestion("Or pin it in /etc/zfsbe/config.cue: overrides: pool: \"zroot\"").
				WithIssue(issue.PoolNotFoundId).
				Wrap(err).
				BuildError()
		}
		return detect.Resolved{}, issue.NewErrorContext().
			WithOperation("apply detection overrides").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	for _, w := range r.Warnings {
		d.Logger.Warn(w)
	}
	d.Logger.Info("detected",
		"pool", r.Pool, "root", r.RootDataset, "bootloader", r.Bootloader, "esp", r.ESP)
	return r, nil
}
