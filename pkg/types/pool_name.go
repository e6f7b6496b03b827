// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidPoolName is the sentinel error wrapped by InvalidPoolNameError.
var ErrInvalidPoolName = errors.New("invalid pool name")

type (
	// PoolName is the name of a ZFS storage pool (e.g. "zroot").
	// It must be non-empty, contain no '/' and no whitespace, and start with a letter.
	PoolName string

	// InvalidPoolNameError is returned when a PoolName fails validation.
	InvalidPoolNameError struct {
		Value  PoolName
		Reason string
	}
)

// String returns the pool name.
func (p PoolName) String() string { return string(p) }

// Validate checks the ZFS pool naming rules that matter for dataset paths.
func (p PoolName) Validate() error {
	s := string(p)
	switch {
	case s == "":
		return &InvalidPoolNameError{Value: p, Reason: "must be non-empty"}
	case strings.Contains(s, "/"):
		return &InvalidPoolNameError{Value: p, Reason: "must not contain '/'"}
	case strings.IndexFunc(s, unicode.IsSpace) >= 0:
		return &InvalidPoolNameError{Value: p, Reason: "must not contain whitespace"}
	case !unicode.IsLetter(rune(s[0])):
		return &InvalidPoolNameError{Value: p, Reason: "must begin with a letter"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidPoolNameError) Error() string {
	return fmt.Sprintf("invalid pool name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidPoolName.
func (e *InvalidPoolNameError) Unwrap() error { return ErrInvalidPoolName }
