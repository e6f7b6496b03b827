// SPDX-License-Identifier: MPL-2.0

// Package artifacts renders and manages every file zfsbe leaves on the host:
// the generated shell config, the zbe and zbe-sign wrappers, pacman hooks,
// backups of edited files and the install manifest.
//
// All file access goes through an afero.Fs so a staging root or an in-memory
// filesystem can stand in for "/". Writes are idempotent: rendering is
// deterministic and backups are taken at most once.
package artifacts
