// SPDX-License-Identifier: MPL-2.0

package hostexec

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type (
	// FakeRunner is an in-memory Runner for tests. Responses are keyed by the
	// full command line ("pacman -Q sbctl"); unmatched commands succeed with
	// empty output unless Strict is set.
	FakeRunner struct {
		mu        sync.Mutex
		responses map[string]FakeResponse
		missing   map[string]bool
		calls     []string
		// Strict makes unmatched commands fail with exit status 127.
		Strict bool
	}

	// FakeResponse is the canned outcome of one command line.
	FakeResponse struct {
		Stdout   string
		Stderr   string
		ExitCode int
	}
)

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		responses: make(map[string]FakeResponse),
		missing:   make(map[string]bool),
	}
}

// On registers the response for a command line.
func (f *FakeRunner) On(cmdline string, resp FakeResponse) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = resp
	return f
}

// Missing marks tools as absent from PATH.
func (f *FakeRunner) Missing(names ...string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.missing[n] = true
	}
	return f
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}

	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))

	f.mu.Lock()
	f.calls = append(f.calls, cmdline)
	missing := f.missing[name]
	resp, ok := f.responses[cmdline]
	strict := f.Strict
	f.mu.Unlock()

	if missing {
		return Result{ExitCode: -1}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if !ok && strict {
		resp = FakeResponse{ExitCode: 127, Stderr: "unexpected command: " + cmdline}
	}

	res := Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		return res, &CommandError{Name: name, Args: args, ExitCode: resp.ExitCode, Stderr: resp.Stderr}
	}
	return res, nil
}

// LookPath implements Runner.
func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return "/usr/bin/" + name, nil
}

// Calls returns every command line run so far, in order.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Called reports whether cmdline was run.
func (f *FakeRunner) Called(cmdline string) bool {
	for _, c := range f.Calls() {
		if c == cmdline {
			return true
		}
	}
	return false
}

// CalledPrefix reports whether any command line starting with prefix was run.
func (f *FakeRunner) CalledPrefix(prefix string) bool {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
