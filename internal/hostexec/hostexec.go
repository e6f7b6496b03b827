// SPDX-License-Identifier: MPL-2.0

package hostexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrToolNotFound is returned when the requested binary is not on PATH.
var ErrToolNotFound = errors.New("tool not found")

type (
	// Result holds the captured output of a finished command.
	Result struct {
		Stdout   string
		Stderr   string
		ExitCode int
	}

	// CommandError is returned when a command exits non-zero.
	CommandError struct {
		Name     string
		Args     []string
		ExitCode int
		Stderr   string
	}

	// Runner executes external commands.
	Runner interface {
		// Run executes name with args and waits for completion. A non-zero exit
		// returns the Result together with a *CommandError.
		Run(ctx context.Context, name string, args ...string) (Result, error)
		// LookPath resolves name on PATH.
		LookPath(name string) (string, error)
	}

	// ExecCommandFunc creates an exec.Cmd; tests may substitute it.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// ExecRunner is the production Runner backed by os/exec.
	ExecRunner struct {
		execCommand ExecCommandFunc
		logger      *log.Logger
	}

	// Option configures an ExecRunner.
	Option func(*ExecRunner)
)

// WithExecCommand overrides how commands are constructed.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(r *ExecRunner) { r.execCommand = fn }
}

// NewExecRunner creates a Runner that logs every invocation at debug level.
func NewExecRunner(logger *log.Logger, opts ...Option) *ExecRunner {
	r := &ExecRunner{
		execCommand: exec.CommandContext,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if _, err := exec.LookPath(name); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	r.logger.Debug("exec", "cmd", name, "args", strings.Join(args, " "))

	var stdout, stderr bytes.Buffer
	cmd := r.execCommand(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &CommandError{Name: name, Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	res.ExitCode = -1
	return res, fmt.Errorf("run %s: %w", name, err)
}

// LookPath implements Runner.
func (r *ExecRunner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return path, nil
}

// Error implements the error interface. Stderr is trimmed to its last line,
// which is where pacman, zfs and sbctl put the actual reason.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: exit status %d", e.Name, strings.Join(e.Args, " "), e.ExitCode)
	if last := lastLine(e.Stderr); last != "" {
		msg += ": " + last
	}
	return msg
}

// MissingTools returns the subset of names that LookPath cannot resolve,
// preserving order.
func MissingTools(r Runner, names ...string) []string {
	var missing []string
	for _, name := range names {
		if _, err := r.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Lines splits command output into trimmed, non-empty lines.
func Lines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func lastLine(s string) string {
	lines := Lines(s)
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
