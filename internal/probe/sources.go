// SPDX-License-Identifier: MPL-2.0

package probe

import (
	"fmt"

	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/pkg/types"

	zfs "github.com/mistifyio/go-zfs"
	"github.com/moby/sys/mountinfo"
)

type (
	// MountLister returns the current mount table.
	MountLister interface {
		Mounts() ([]detect.Mount, error)
	}

	// PoolLister enumerates ZFS pools and filesystem datasets.
	PoolLister interface {
		Pools() ([]types.PoolName, error)
		Datasets() ([]types.DatasetName, error)
	}

	// HostMounts reads /proc/self/mountinfo.
	HostMounts struct{}

	// HostZFS shells out to zpool and zfs through go-zfs.
	HostZFS struct{}

	// StaticMounts is a fixed mount table.
	StaticMounts []detect.Mount

	// StaticZFS is a fixed pool and dataset listing.
	StaticZFS struct {
		PoolNames    []types.PoolName
		DatasetNames []types.DatasetName
		Err          error
	}
)

// Mounts implements MountLister.
func (HostMounts) Mounts() ([]detect.Mount, error) {
	infos, err := mountinfo.GetMounts(nil)
	if err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}
	mounts := make([]detect.Mount, 0, len(infos))
	for _, info := range infos {
		mounts = append(mounts, detect.Mount{
			Mountpoint: info.Mountpoint,
			FSType:     info.FSType,
			Source:     info.Source,
		})
	}
	return mounts, nil
}

// Pools implements PoolLister.
func (HostZFS) Pools() ([]types.PoolName, error) {
	pools, err := zfs.ListZpools()
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	names := make([]types.PoolName, 0, len(pools))
	for _, p := range pools {
		names = append(names, types.PoolName(p.Name))
	}
	return names, nil
}

// Datasets implements PoolLister.
func (HostZFS) Datasets() ([]types.DatasetName, error) {
	datasets, err := zfs.Filesystems("")
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	names := make([]types.DatasetName, 0, len(datasets))
	for _, d := range datasets {
		names = append(names, types.DatasetName(d.Name))
	}
	return names, nil
}

// Mounts implements MountLister.
func (s StaticMounts) Mounts() ([]detect.Mount, error) {
	return s, nil
}

// Pools implements PoolLister.
func (s StaticZFS) Pools() ([]types.PoolName, error) {
	return s.PoolNames, s.Err
}

// Datasets implements PoolLister.
func (s StaticZFS) Datasets() ([]types.DatasetName, error) {
	return s.DatasetNames, s.Err
}
