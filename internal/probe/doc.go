// SPDX-License-Identifier: MPL-2.0

// Package probe gathers read-only facts about the host: the mount table,
// ZFS pools and datasets, bootloader traces and privilege/firmware
// preconditions.
package probe
