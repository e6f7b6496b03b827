// SPDX-License-Identifier: MPL-2.0

package detect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zfsbe/zfsbe/pkg/types"
)

// Source values name where a resolved field came from.
const (
	SourceOverride  Source = "override"
	SourceRootMount Source = "root-mount"
	SourcePoolList  Source = "pool-list"
	SourceCandidate Source = "candidate"
	SourceBootctl   Source = "bootctl"
	SourceGrub      Source = "grub-config"
	SourceRefind    Source = "refind-dir"
	SourceMountScan Source = "mount-scan"
	SourceDefault   Source = "default"
)

// ErrPoolNotFound is returned when no pool can be resolved.
var ErrPoolNotFound = errors.New("no ZFS pool found")

type (
	// Source identifies the detection step that produced a value.
	Source string

	// Resolved is the outcome of detection.
	Resolved struct {
		Pool       types.PoolName `json:"pool"`
		PoolSource Source         `json:"pool_source"`

		// Bootloader is the effective variant used by later steps.
		Bootloader types.BootloaderVariant `json:"bootloader"`
		// DetectedBootloader is what the host showed, possibly unknown.
		DetectedBootloader types.BootloaderVariant `json:"detected_bootloader"`
		BootloaderSource   Source                  `json:"bootloader_source"`

		ESP       types.ESPPath `json:"esp"`
		ESPSource Source        `json:"esp_source"`

		RootDataset       types.DatasetName `json:"root_dataset"`
		RootDatasetSource Source            `json:"root_dataset_source"`

		// BootEnvRoot is the parent of RootDataset.
		BootEnvRoot types.DatasetName `json:"boot_env_root"`

		Warnings []string `json:"warnings,omitempty"`
	}

	// Field is one row of a Resolved value, for display.
	Field struct {
		Name   string
		Value  string
		Source Source
	}

	// InvalidOverrideError reports an override that fails validation.
	InvalidOverrideError struct {
		Field string
		Err   error
	}
)

// Error implements the error interface.
func (e *InvalidOverrideError) Error() string {
	return fmt.Sprintf("invalid %s override: %v", e.Field, e.Err)
}

// Unwrap returns the validation error.
func (e *InvalidOverrideError) Unwrap() error { return e.Err }

// Resolve determines pool, bootloader, ESP and root dataset from facts.
// It performs no I/O.
func Resolve(facts Facts, policy Policy) (Resolved, error) {
	if err := validateOverrides(policy.Overrides); err != nil {
		return Resolved{}, err
	}

	var r Resolved
	r.Warnings = append(r.Warnings, facts.Warnings...)

	pool, src, err := resolvePool(&facts, policy)
	if err != nil {
		return Resolved{}, err
	}
	r.Pool, r.PoolSource = pool, src

	r.DetectedBootloader, r.BootloaderSource = resolveBootloader(&facts, policy)
	r.Bootloader = r.DetectedBootloader
	if r.DetectedBootloader == types.BootloaderUnknown {
		r.Bootloader = policy.DefaultBootloader
		if !r.Bootloader.IsKnown() {
			r.Bootloader = types.BootloaderSystemdBoot
		}
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("no bootloader signature found, assuming %s", r.Bootloader))
	}

	var ok bool
	r.ESP, r.ESPSource, ok = resolveESP(&facts, policy)
	if !ok {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("no FAT-formatted EFI system partition mounted at %s, assuming %s",
				joinESP(policy.ESPCandidates), r.ESP))
	}

	r.RootDataset, r.RootDatasetSource, ok = resolveRootDataset(&facts, policy, r.Pool)
	if !ok {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("root dataset not found under pool %s, assuming %s", r.Pool, r.RootDataset))
	}
	r.BootEnvRoot = r.RootDataset.Parent()

	return r, nil
}

func validateOverrides(o Overrides) error {
	if o.Pool != "" {
		if err := o.Pool.Validate(); err != nil {
			return &InvalidOverrideError{Field: "pool", Err: err}
		}
	}
	if o.RootDataset != "" {
		if err := o.RootDataset.Validate(); err != nil {
			return &InvalidOverrideError{Field: "root dataset", Err: err}
		}
	}
	if o.Bootloader != "" && !o.Bootloader.IsKnown() {
		return &InvalidOverrideError{Field: "bootloader", Err: &types.InvalidBootloaderVariantError{Value: o.Bootloader}}
	}
	if o.ESP != "" {
		if err := o.ESP.Validate(); err != nil {
			return &InvalidOverrideError{Field: "esp", Err: err}
		}
	}
	return nil
}

func resolvePool(f *Facts, p Policy) (types.PoolName, Source, error) {
	if p.Overrides.Pool != "" {
		return p.Overrides.Pool, SourceOverride, nil
	}

	if m, ok := f.RootMount(); ok && m.FSType == "zfs" && m.Source != "" {
		pool, _, _ := strings.Cut(m.Source, "/")
		return types.PoolName(pool), SourceRootMount, nil
	}

	if len(f.Pools) > 0 {
		return f.Pools[0], SourcePoolList, nil
	}

	for _, c := range p.PoolCandidates {
		if f.HasDataset(types.DatasetName(c)) {
			return c, SourceCandidate, nil
		}
	}

	return "", "", ErrPoolNotFound
}

func resolveBootloader(f *Facts, p Policy) (types.BootloaderVariant, Source) {
	if p.Overrides.Bootloader != "" {
		return p.Overrides.Bootloader, SourceOverride
	}
	if f.BootctlOK {
		return types.BootloaderSystemdBoot, SourceBootctl
	}
	for _, path := range p.GrubPaths {
		if f.Exists(path) {
			return types.BootloaderGrub, SourceGrub
		}
	}
	for _, dir := range p.RefindDirs {
		if f.Exists(dir) {
			return types.BootloaderRefind, SourceRefind
		}
	}
	return types.BootloaderUnknown, SourceDefault
}

// resolveESP returns ok=false when it fell back to the default.
func resolveESP(f *Facts, p Policy) (types.ESPPath, Source, bool) {
	if p.Overrides.ESP != "" {
		return p.Overrides.ESP, SourceOverride, true
	}
	for _, c := range p.ESPCandidates {
		if m, ok := f.MountAt(string(c)); ok && IsFAT(m.FSType) {
			return c, SourceMountScan, true
		}
	}
	def := p.DefaultESP
	if def == "" {
		def = "/boot/efi"
	}
	return def, SourceDefault, false
}

// resolveRootDataset returns ok=false when it fell back to the first pattern.
func resolveRootDataset(f *Facts, p Policy, pool types.PoolName) (types.DatasetName, Source, bool) {
	if p.Overrides.RootDataset != "" {
		return p.Overrides.RootDataset, SourceOverride, true
	}

	if m, ok := f.RootMount(); ok && m.FSType == "zfs" && m.Source != "" {
		return types.DatasetName(m.Source), SourceRootMount, true
	}

	for _, pattern := range p.DatasetPatterns {
		name := expandPattern(pattern, pool)
		if f.HasDataset(name) {
			return name, SourceCandidate, true
		}
	}

	first := "%s/ROOT/default"
	if len(p.DatasetPatterns) > 0 {
		first = p.DatasetPatterns[0]
	}
	return expandPattern(first, pool), SourceDefault, false
}

func expandPattern(pattern string, pool types.PoolName) types.DatasetName {
	return types.DatasetName(strings.Replace(pattern, "%s", string(pool), 1))
}

func joinESP(c []types.ESPPath) string {
	if len(c) == 0 {
		return "any candidate"
	}
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}

// Fields lists the resolved values in display order.
func (r *Resolved) Fields() []Field {
	bl := string(r.Bootloader)
	if r.DetectedBootloader == types.BootloaderUnknown {
		bl += " (not detected)"
	}
	return []Field{
		{Name: "pool", Value: string(r.Pool), Source: r.PoolSource},
		{Name: "bootloader", Value: bl, Source: r.BootloaderSource},
		{Name: "esp", Value: string(r.ESP), Source: r.ESPSource},
		{Name: "root dataset", Value: string(r.RootDataset), Source: r.RootDatasetSource},
		{Name: "boot env root", Value: string(r.BootEnvRoot), Source: r.RootDatasetSource},
	}
}
