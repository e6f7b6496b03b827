// SPDX-License-Identifier: MPL-2.0

package artifacts

import "path"

const (
	// ConfigPath is the generated, shell-sourceable configuration.
	ConfigPath = "/etc/zfsbe/zfsbe.conf"
	// WrapperDir holds the generated wrapper scripts.
	WrapperDir = "/usr/local/bin"
	// BootEnvWrapperName manages boot environments.
	BootEnvWrapperName = "zbe"
	// SignWrapperName drives Secure Boot signing.
	SignWrapperName = "zbe-sign"
	// BackupSuffix is appended to a file's path to name its backup.
	BackupSuffix = ".zfsbe.bak"
	// ManifestPath records what install created.
	ManifestPath = "/var/lib/zfsbe/manifest.toml"

	fileMode    = 0o644
	wrapperMode = 0o755
	dirMode     = 0o755
)

// Kind classifies a generated file.
type Kind string

const (
	KindConfig  Kind = "config"
	KindHook    Kind = "hook"
	KindWrapper Kind = "wrapper"
)

// BootEnvWrapperPath is the absolute path of the zbe wrapper.
func BootEnvWrapperPath() string { return path.Join(WrapperDir, BootEnvWrapperName) }

// SignWrapperPath is the absolute path of the zbe-sign wrapper.
func SignWrapperPath() string { return path.Join(WrapperDir, SignWrapperName) }

// BackupPath returns where the backup of p lives.
func BackupPath(p string) string { return p + BackupSuffix }
