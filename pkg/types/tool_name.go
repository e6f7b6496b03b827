// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidToolName is the sentinel error wrapped by InvalidToolNameError.
var ErrInvalidToolName = errors.New("invalid tool name")

// toolNamePattern admits command names and paths that need no shell quoting.
var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)

type (
	// ToolName is an external command written into generated scripts
	// (e.g. "zectl" or "/usr/local/bin/sbctl").
	ToolName string

	// InvalidToolNameError is returned when a ToolName fails validation.
	InvalidToolNameError struct {
		Value ToolName
	}
)

// String returns the tool name.
func (n ToolName) String() string { return string(n) }

// Validate rejects empty names and any character a shell would interpret.
func (n ToolName) Validate() error {
	if !toolNamePattern.MatchString(string(n)) {
		return &InvalidToolNameError{Value: n}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidToolNameError) Error() string {
	return fmt.Sprintf("invalid tool name %q: only letters, digits and _ . / - are allowed", e.Value)
}

// Unwrap returns ErrInvalidToolName.
func (e *InvalidToolNameError) Unwrap() error { return ErrInvalidToolName }
