// SPDX-License-Identifier: MPL-2.0

// Package installer runs ordered plans of steps against the host.
//
// A failing precondition aborts the plan. Any other failing step is logged
// as a warning, recorded on the Report and the plan continues. A step whose
// confirmation is declined is skipped; a declined gate skips everything
// after it.
package installer
