// SPDX-License-Identifier: MPL-2.0

// Package tui holds the interactive surface: yes/no confirmations and
// markdown rendering for reports.
package tui
