// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidDatasetName is the sentinel error wrapped by InvalidDatasetNameError.
var ErrInvalidDatasetName = errors.New("invalid dataset name")

type (
	// DatasetName is a full ZFS dataset path such as "zroot/ROOT/default".
	// The first component is the pool.
	DatasetName string

	// InvalidDatasetNameError is returned when a DatasetName fails validation.
	InvalidDatasetNameError struct {
		Value  DatasetName
		Reason string
	}
)

// String returns the dataset name.
func (d DatasetName) String() string { return string(d) }

// Pool returns the pool component of the dataset name.
func (d DatasetName) Pool() PoolName {
	s := string(d)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return PoolName(s[:i])
	}
	return PoolName(s)
}

// Parent returns the dataset one level up, or "" for a pool root dataset.
func (d DatasetName) Parent() DatasetName {
	s := string(d)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return DatasetName(s[:i])
	}
	return ""
}

// Validate checks that the name is a well-formed dataset path.
func (d DatasetName) Validate() error {
	s := string(d)
	if s == "" {
		return &InvalidDatasetNameError{Value: d, Reason: "must be non-empty"}
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return &InvalidDatasetNameError{Value: d, Reason: "must not contain whitespace"}
	}
	if strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") || strings.Contains(s, "//") {
		return &InvalidDatasetNameError{Value: d, Reason: "must not have empty path components"}
	}
	if strings.ContainsAny(s, "@#") {
		return &InvalidDatasetNameError{Value: d, Reason: "snapshots and bookmarks are not datasets"}
	}
	if err := d.Pool().Validate(); err != nil {
		return &InvalidDatasetNameError{Value: d, Reason: err.Error()}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidDatasetNameError) Error() string {
	return fmt.Sprintf("invalid dataset name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidDatasetName.
func (e *InvalidDatasetNameError) Unwrap() error { return ErrInvalidDatasetName }
