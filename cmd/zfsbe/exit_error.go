// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/zfsbe/zfsbe/internal/config"
	"github.com/zfsbe/zfsbe/internal/installer"
	"github.com/zfsbe/zfsbe/internal/issue"
	"github.com/zfsbe/zfsbe/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor classifies err: configuration problems exit 3, unmet
// preconditions exit 2, anything else exits 1.
func exitCodeFor(err error) types.ExitCode {
	if err == nil {
		return types.ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch issue.IssueOf(err) {
	case issue.ConfigLoadFailedId:
		return types.ExitConfig
	case issue.NotRootId, issue.ToolMissingId, issue.NoUEFIId, issue.PoolNotFoundId:
		return types.ExitPrecondition
	}

	switch {
	case errors.Is(err, config.ErrInvalidConfig):
		return types.ExitConfig
	case installer.IsPrecondition(err):
		return types.ExitPrecondition
	default:
		return types.ExitFailure
	}
}
