// SPDX-License-Identifier: MPL-2.0

// Package secureboot drives the signing tool (sbctl by default), reads the
// firmware's Secure Boot state and backs up signing keys.
package secureboot
