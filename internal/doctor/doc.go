// SPDX-License-Identifier: MPL-2.0

// Package doctor inspects the host and the installed artifacts without
// changing anything, and renders the findings as a markdown report.
package doctor
