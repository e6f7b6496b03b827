// SPDX-License-Identifier: MPL-2.0

// Package pacman drives the pacman package manager and renders the files
// zfsbe hands to it: transaction hooks and the repository section of
// pacman.conf.
package pacman
