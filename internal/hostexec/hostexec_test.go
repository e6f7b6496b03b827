// SPDX-License-Identifier: MPL-2.0

package hostexec

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/charmbracelet/log"
)

func TestExecRunner_Run(t *testing.T) {
	t.Parallel()

	r := NewExecRunner(log.New(io.Discard))

	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "out\n" || res.Stderr != "err\n" {
		t.Errorf("Run() = %+v", res)
	}

	res, err = r.Run(context.Background(), "sh", "-c", "echo first >&2; echo 'real reason' >&2; exit 3")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %T (%v)", err, err)
	}
	if cmdErr.ExitCode != 3 || res.ExitCode != 3 {
		t.Errorf("exit code = %d/%d, want 3", cmdErr.ExitCode, res.ExitCode)
	}
	if want := "sh -c echo first >&2; echo 'real reason' >&2; exit 3: exit status 3: real reason"; cmdErr.Error() != want {
		t.Errorf("Error() = %q, want %q", cmdErr.Error(), want)
	}
}

func TestExecRunner_ToolNotFound(t *testing.T) {
	t.Parallel()

	r := NewExecRunner(log.New(io.Discard))
	_, err := r.Run(context.Background(), "zfsbe-definitely-not-a-tool")
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Run() error = %v, want ErrToolNotFound", err)
	}
	if _, err := r.LookPath("zfsbe-definitely-not-a-tool"); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("LookPath() error = %v, want ErrToolNotFound", err)
	}
}

func TestFakeRunner(t *testing.T) {
	t.Parallel()

	f := NewFakeRunner().
		On("pacman -Q sbctl", FakeResponse{Stdout: "sbctl 0.16-1\n"}).
		On("pacman -Q zectl", FakeResponse{ExitCode: 1, Stderr: "error: package 'zectl' was not found"}).
		Missing("bootctl")

	res, err := f.Run(context.Background(), "pacman", "-Q", "sbctl")
	if err != nil || res.Stdout != "sbctl 0.16-1\n" {
		t.Errorf("Run(sbctl) = %+v, %v", res, err)
	}

	_, err = f.Run(context.Background(), "pacman", "-Q", "zectl")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || cmdErr.ExitCode != 1 {
		t.Errorf("Run(zectl) error = %v", err)
	}

	if _, err := f.Run(context.Background(), "bootctl", "status"); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Run(bootctl) error = %v, want ErrToolNotFound", err)
	}

	if _, err := f.Run(context.Background(), "true"); err != nil {
		t.Errorf("unmatched command should succeed in non-strict mode: %v", err)
	}

	want := []string{"pacman -Q sbctl", "pacman -Q zectl", "bootctl status", "true"}
	if got := f.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("Calls() = %v, want %v", got, want)
	}
	if !f.CalledPrefix("pacman -Q") || f.Called("pacman -S") {
		t.Error("Called/CalledPrefix mismatch")
	}

	f.Strict = true
	if _, err := f.Run(context.Background(), "zpool", "list"); err == nil {
		t.Error("strict mode should fail unmatched commands")
	}
}

func TestMissingToolsAndLines(t *testing.T) {
	t.Parallel()

	f := NewFakeRunner().Missing("zpool", "sbctl")
	if got := MissingTools(f, "zfs", "zpool", "sbctl"); !reflect.DeepEqual(got, []string{"zpool", "sbctl"}) {
		t.Errorf("MissingTools() = %v", got)
	}

	if got := Lines("  zroot \n\n rpool\n"); !reflect.DeepEqual(got, []string{"zroot", "rpool"}) {
		t.Errorf("Lines() = %v", got)
	}
}
