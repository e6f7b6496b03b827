// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. The issue catalog holds longer markdown help texts for
// the fatal preconditions zfsbe checks, rendered with glamour by the CLI layer.
package issue
