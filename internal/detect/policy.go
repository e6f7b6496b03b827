// SPDX-License-Identifier: MPL-2.0

package detect

import (
	"slices"

	"github.com/zfsbe/zfsbe/internal/config"
	"github.com/zfsbe/zfsbe/pkg/types"
)

type (
	// Overrides pin resolved values. Zero fields are detected.
	Overrides struct {
		Pool        types.PoolName
		RootDataset types.DatasetName
		Bootloader  types.BootloaderVariant
		ESP         types.ESPPath
	}

	// Policy carries the ordered candidate lists and the fallbacks used when
	// nothing matches.
	Policy struct {
		PoolCandidates    []types.PoolName
		DatasetPatterns   []string
		ESPCandidates     []types.ESPPath
		GrubPaths         []string
		RefindDirs        []string
		DefaultBootloader types.BootloaderVariant
		DefaultESP        types.ESPPath
		Overrides         Overrides
	}
)

// PolicyFromConfig builds a Policy from loaded settings.
func PolicyFromConfig(cfg *config.Config) Policy {
	d := cfg.Detection
	return Policy{
		PoolCandidates:    slices.Clone(d.PoolCandidates),
		DatasetPatterns:   slices.Clone(d.DatasetPatterns),
		ESPCandidates:     slices.Clone(d.ESPCandidates),
		GrubPaths:         slices.Clone(d.GrubPaths),
		RefindDirs:        slices.Clone(d.RefindDirs),
		DefaultBootloader: d.DefaultLoader,
		DefaultESP:        d.DefaultESP,
		Overrides: Overrides{
			Pool:        cfg.Overrides.Pool,
			RootDataset: cfg.Overrides.RootDataset,
			Bootloader:  cfg.Overrides.Bootloader,
			ESP:         cfg.Overrides.ESP,
		},
	}
}

// DefaultPolicy is the policy built from the built-in settings.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultConfig())
}

// ProbePaths lists every path whose existence Resolve consults.
func (p Policy) ProbePaths() []string {
	paths := make([]string, 0, len(p.GrubPaths)+len(p.RefindDirs))
	paths = append(paths, p.GrubPaths...)
	paths = append(paths, p.RefindDirs...)
	return paths
}
