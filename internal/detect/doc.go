// SPDX-License-Identifier: MPL-2.0

// Package detect resolves the storage pool, bootloader, EFI system partition
// and root dataset of the running host from probed facts.
//
// Resolution is a pure function of Facts and Policy. Every field walks an
// ordered list of sources and the first match wins; there is no scoring.
// Only a missing pool is fatal. Every other miss degrades to a default and a
// warning recorded on the result.
package detect
