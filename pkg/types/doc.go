// SPDX-License-Identifier: MPL-2.0

// Package types defines validated primitive types shared across zfsbe packages.
//
// Each type follows the same shape: a named string (or int) with a Validate
// method returning a typed error that wraps a package-level sentinel, so callers
// can match with errors.Is and inspect the offending value with errors.As.
package types
