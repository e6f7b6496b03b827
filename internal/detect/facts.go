// SPDX-License-Identifier: MPL-2.0

package detect

import (
	"path/filepath"
	"slices"

	"github.com/zfsbe/zfsbe/pkg/types"
)

type (
	// Mount is one row of the mount table.
	Mount struct {
		Mountpoint string `json:"mountpoint"`
		FSType     string `json:"fstype"`
		Source     string `json:"source"`
	}

	// Facts are the raw, read-only observations of the host.
	Facts struct {
		// Mounts is the mount table in kernel order.
		Mounts []Mount `json:"mounts"`
		// Pools is the pool listing, in listing order.
		Pools []types.PoolName `json:"pools"`
		// Datasets are filesystem dataset names.
		Datasets []types.DatasetName `json:"datasets"`
		// Existing records the probed paths that exist on the host.
		Existing map[string]bool `json:"existing"`
		// BootctlOK is true when "bootctl status" exited zero.
		BootctlOK bool `json:"bootctl_ok"`
		// Warnings are non-fatal probe failures.
		Warnings []string `json:"warnings,omitempty"`
	}
)

// RootMount returns the mount for "/". When "/" is mounted more than once the
// last entry wins, as it shadows the others.
func (f *Facts) RootMount() (Mount, bool) {
	return f.MountAt("/")
}

// MountAt returns the topmost mount whose mount point equals path.
func (f *Facts) MountAt(path string) (Mount, bool) {
	path = filepath.Clean(path)
	for i := len(f.Mounts) - 1; i >= 0; i-- {
		if filepath.Clean(f.Mounts[i].Mountpoint) == path {
			return f.Mounts[i], true
		}
	}
	return Mount{}, false
}

// Exists reports whether path was observed on the host.
func (f *Facts) Exists(path string) bool {
	return f.Existing[filepath.Clean(path)]
}

// HasDataset reports whether a filesystem dataset with the given name exists.
func (f *Facts) HasDataset(name types.DatasetName) bool {
	return slices.Contains(f.Datasets, name)
}

// IsFAT reports whether fstype belongs to the FAT family used by EFI system partitions.
func IsFAT(fstype string) bool {
	switch fstype {
	case "vfat", "msdos", "fat":
		return true
	default:
		return false
	}
}
