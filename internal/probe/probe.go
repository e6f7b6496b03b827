// SPDX-License-Identifier: MPL-2.0

package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/hostexec"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// EFIFirmwareDir exists only when the kernel was booted through UEFI.
const EFIFirmwareDir = "/sys/firmware/efi"

type (
	// Collector gathers Facts from injected host sources.
	Collector struct {
		fs     afero.Fs
		mounts MountLister
		zfs    PoolLister
		runner hostexec.Runner
		logger *log.Logger
		euid   func() int
	}

	// Option configures a Collector.
	Option func(*Collector)
)

// WithFs replaces the filesystem used for existence checks.
func WithFs(fs afero.Fs) Option {
	return func(c *Collector) { c.fs = fs }
}

// WithMounts replaces the mount table source.
func WithMounts(m MountLister) Option {
	return func(c *Collector) { c.mounts = m }
}

// WithZFS replaces the pool and dataset source.
func WithZFS(z PoolLister) Option {
	return func(c *Collector) { c.zfs = z }
}

// WithEUID replaces the effective UID lookup.
func WithEUID(fn func() int) Option {
	return func(c *Collector) { c.euid = fn }
}

// NewCollector creates a Collector reading the live host unless overridden.
func NewCollector(runner hostexec.Runner, logger *log.Logger, opts ...Option) *Collector {
	c := &Collector{
		fs:     afero.NewOsFs(),
		mounts: HostMounts{},
		zfs:    HostZFS{},
		runner: runner,
		logger: logger,
		euid:   os.Geteuid,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect gathers every fact Resolve consults. Source failures become
// warnings on the returned Facts.
func (c *Collector) Collect(ctx context.Context, policy detect.Policy) detect.Facts {
	facts := detect.Facts{Existing: make(map[string]bool)}

	mounts, err := c.mounts.Mounts()
	if err != nil {
		c.warn(&facts, err)
	}
	facts.Mounts = mounts

	pools, err := c.zfs.Pools()
	if err != nil {
		c.warn(&facts, err)
	}
	facts.Pools = pools

	datasets, err := c.zfs.Datasets()
	if err != nil {
		c.warn(&facts, err)
	}
	facts.Datasets = datasets

	for _, path := range policy.ProbePaths() {
		if c.exists(path) {
			facts.Existing[filepath.Clean(path)] = true
		}
	}

	_, err = c.runner.Run(ctx, "bootctl", "status")
	switch {
	case err == nil:
		facts.BootctlOK = true
	case errors.Is(err, hostexec.ErrToolNotFound):
		c.logger.Debug("bootctl not installed")
	default:
		c.logger.Debug("bootctl status failed", "err", err)
	}

	c.logger.Debug("facts collected",
		"mounts", len(facts.Mounts), "pools", len(facts.Pools),
		"datasets", len(facts.Datasets), "bootctl", facts.BootctlOK)

	return facts
}

// IsRoot reports whether the process runs with effective UID 0.
func (c *Collector) IsRoot() bool {
	return c.euid() == 0
}

// HasUEFI reports whether the host booted through UEFI firmware.
func (c *Collector) HasUEFI() bool {
	return c.exists(EFIFirmwareDir)
}

// MissingTools returns the names that are not on PATH.
func (c *Collector) MissingTools(names ...string) []string {
	return hostexec.MissingTools(c.runner, names...)
}

// Exists reports whether path exists on the probed filesystem.
func (c *Collector) Exists(path string) bool {
	return c.exists(path)
}

func (c *Collector) exists(path string) bool {
	ok, err := afero.Exists(c.fs, path)
	return err == nil && ok
}

func (c *Collector) warn(facts *detect.Facts, err error) {
	c.logger.Debug("probe failed", "err", err)
	facts.Warnings = append(facts.Warnings, err.Error())
}
