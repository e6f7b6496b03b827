// SPDX-License-Identifier: MPL-2.0

// Package hostexec runs external system tools (pacman, zfs, zectl, sbctl,
// bootctl) and captures their output. Every collaborator package takes a
// Runner so it can be exercised against FakeRunner in tests.
package hostexec
