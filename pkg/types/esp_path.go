// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrInvalidESPPath is the sentinel error wrapped by InvalidESPPathError.
var ErrInvalidESPPath = errors.New("invalid ESP path")

type (
	// ESPPath is the mount point of the EFI System Partition.
	// It must be absolute and already cleaned (no trailing slash except for "/").
	ESPPath string

	// InvalidESPPathError is returned when an ESPPath fails validation.
	InvalidESPPathError struct {
		Value  ESPPath
		Reason string
	}
)

// String returns the path.
func (p ESPPath) String() string { return string(p) }

// Join returns the path of elem relative to the ESP mount point.
func (p ESPPath) Join(elem ...string) string {
	return filepath.Join(append([]string{string(p)}, elem...)...)
}

// Validate checks the path is absolute and clean.
func (p ESPPath) Validate() error {
	s := string(p)
	if s == "" {
		return &InvalidESPPathError{Value: p, Reason: "must be non-empty"}
	}
	if !filepath.IsAbs(s) {
		return &InvalidESPPathError{Value: p, Reason: "must be absolute"}
	}
	if filepath.Clean(s) != s {
		return &InvalidESPPathError{Value: p, Reason: "must be a clean path"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidESPPathError) Error() string {
	return fmt.Sprintf("invalid ESP path %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidESPPath.
func (e *InvalidESPPathError) Unwrap() error { return ErrInvalidESPPath }
