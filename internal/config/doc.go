// SPDX-License-Identifier: MPL-2.0

// Package config handles zfsbe settings using Viper with CUE as the file format.
//
// Settings are loaded from /etc/zfsbe/config.cue when it exists, validated
// against the embedded CUE schema (config_schema.cue), merged over the
// built-in defaults and finally overridden by ZFSBE_* environment variables
// (for example ZFSBE_OVERRIDES_POOL=tank). A missing file is not an error.
//
// Settings hold the ordered candidate lists the auto-detector walks, explicit
// overrides that bypass detection, and the packages, units, repository and
// tool names the installer uses.
package config
