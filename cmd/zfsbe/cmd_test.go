// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/zfsbe/zfsbe/internal/artifacts"
	"github.com/zfsbe/zfsbe/internal/config"
	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/hostexec"
	"github.com/zfsbe/zfsbe/internal/installer"
	"github.com/zfsbe/zfsbe/internal/issue"
	"github.com/zfsbe/zfsbe/internal/probe"
	"github.com/zfsbe/zfsbe/internal/secureboot"
	"github.com/zfsbe/zfsbe/internal/service"
	"github.com/zfsbe/zfsbe/internal/tui"
	"github.com/zfsbe/zfsbe/pkg/types"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

type testCLI struct {
	fs     afero.Fs
	runner *hostexec.FakeRunner
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	deps   Dependencies
}

type noKeys struct{}

func (noKeys) Backup(string, string) (bool, error) { return true, nil }
func (noKeys) Purge(string) error                  { return nil }

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()

	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll(probe.EFIFirmwareDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/etc/pacman.conf", []byte("[options]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := hostexec.NewFakeRunner()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &testCLI{
		fs:     fs,
		runner: runner,
		stdout: stdout,
		stderr: stderr,
		deps: Dependencies{
			Config: config.StaticProvider{},
			Runner: runner,
			Fs:     fs,
			Mounts: probe.StaticMounts{
				{Mountpoint: "/", FSType: "zfs", Source: "rpool/ROOT/arch"},
				{Mountpoint: "/efi", FSType: "vfat", Source: "/dev/nvme0n1p1"},
			},
			ZFS: probe.StaticZFS{
				PoolNames:    []types.PoolName{"rpool"},
				DatasetNames: []types.DatasetName{"rpool", "rpool/ROOT", "rpool/ROOT/arch"},
			},
			EUID: func() int { return 0 },
			Dial: func(context.Context) (service.Bus, error) {
				return nil, errors.New("no system bus")
			},
			Firmware: secureboot.StaticFirmware{},
			Keys:     noKeys{},
			Prompter: tui.NonInteractive{},
			Stdin:    strings.NewReader(""),
			Stdout:   stdout,
			Stderr:   stderr,
		},
	}
}

func (c *testCLI) run(args ...string) error {
	root := NewRootCommand(NewApp(c.deps))
	root.SetArgs(args)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	return root.ExecuteContext(context.Background())
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version, Commit, BuildDate = "v0.3.0", "abc1234", "2026-01-15T10:00:00Z"
		want := "v0.3.0 (commit: abc1234, built: 2026-01-15T10:00:00Z)"
		if got := getVersionString(); got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{"nil", nil, types.ExitSuccess},
		{"plain", errors.New("boom"), types.ExitFailure},
		{"explicit", &ExitError{Code: 7}, 7},
		{"not root", issue.NewErrorContext().WithIssue(issue.NotRootId).Wrap(installer.ErrNotRoot).BuildError(), types.ExitPrecondition},
		{"no pool", fmt.Errorf("detect: %w", issue.NewErrorContext().WithIssue(issue.PoolNotFoundId).Wrap(detect.ErrPoolNotFound).BuildError()), types.ExitPrecondition},
		{"config", issue.NewErrorContext().WithIssue(issue.ConfigLoadFailedId).Wrap(errors.New("bad")).BuildError(), types.ExitConfig},
		{"invalid config", fmt.Errorf("load: %w", config.ErrInvalidConfig), types.ExitConfig},
		{"precondition", &installer.PreconditionError{Step: "x", Err: errors.New("y")}, types.ExitPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDebugEnabled(t *testing.T) {
	t.Parallel()

	for v, want := range map[string]bool{"": false, "0": false, "false": false, "1": true, "yes": true} {
		if got := debugEnabled(v); got != want {
			t.Errorf("debugEnabled(%q) = %v, want %v", v, got, want)
		}
	}
}

func TestDetect_JSON(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	if err := c.run("detect", "--json"); err != nil {
		t.Fatalf("detect error = %v\n%s", err, c.stderr)
	}

	var r detect.Resolved
	if err := json.Unmarshal(c.stdout.Bytes(), &r); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, c.stdout)
	}
	if r.Pool != "rpool" || r.RootDataset != "rpool/ROOT/arch" || r.ESP != "/efi" {
		t.Errorf("detected %+v", r)
	}
}

func TestDetect_Styled(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	if err := c.run("detect"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Detected configuration", "rpool", "root-mount"} {
		if !strings.Contains(c.stdout.String(), want) {
			t.Errorf("output missing %q:\n%s", want, c.stdout)
		}
	}
}

func TestInstall_DryRun(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	if err := c.run("install", "--dry-run"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.stdout.String(), "install plan:") {
		t.Errorf("output = %s", c.stdout)
	}
	if len(c.runner.Calls()) != 0 {
		t.Errorf("dry run ran %v", c.runner.Calls())
	}
}

func TestInstall_NotRootExitsWithPrecondition(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	c.deps.EUID = func() int { return 1000 }
	err := c.run("install", "--yes")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitPrecondition {
		t.Fatalf("install error = %v, want exit %d", err, types.ExitPrecondition)
	}
	if !strings.Contains(c.stderr.String(), "sudo zfsbe install") {
		t.Errorf("stderr missing suggestion:\n%s", c.stderr)
	}
}

func TestInstall_Yes(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	if err := c.run("install", "--yes", "--no-repo"); err != nil {
		t.Fatalf("install error = %v\n%s", err, c.stderr)
	}
	values, err := artifacts.NewStore(c.fs, log.New(io.Discard)).ReadConfig(artifacts.ConfigPath)
	if err != nil {
		t.Fatalf("generated config: %v", err)
	}
	if values["ZFSBE_POOL"] != "rpool" || values["ZFSBE_ESP"] != "/efi" {
		t.Errorf("config values = %v", values)
	}
	// the fake bus is unreachable, so enabling units is a warning only
	if !strings.Contains(c.stdout.String(), "warning(s)") {
		t.Errorf("summary missing warnings:\n%s", c.stdout)
	}
}

func TestInstall_RootFlagStagesFiles(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	if err := c.run("--root", "/stage", "install", "--yes", "--no-repo"); err != nil {
		t.Fatalf("install error = %v\n%s", err, c.stderr)
	}
	if ok, _ := afero.Exists(c.fs, "/stage"+artifacts.ConfigPath); !ok {
		t.Error("config not written below --root")
	}
	if ok, _ := afero.Exists(c.fs, artifacts.ConfigPath); ok {
		t.Error("config written outside --root")
	}
}

func TestConfig_MissingFileExitsWithConfigError(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	c.deps.Config = config.NewProvider()
	err := c.run("--config", "/nonexistent/zfsbe.cue", "config", "show")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitConfig {
		t.Fatalf("config show error = %v, want exit %d", err, types.ExitConfig)
	}
}

func TestConfig_Dump(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	if err := c.run("config", "dump"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"detection: {", `"zroot"`, "secure_boot: {"} {
		if !strings.Contains(c.stdout.String(), want) {
			t.Errorf("dump missing %q", want)
		}
	}
}

func TestConfig_Show(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	if err := c.run("config", "show"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Current Settings", "pool_candidates", "(detect)"} {
		if !strings.Contains(c.stdout.String(), want) {
			t.Errorf("show missing %q:\n%s", want, c.stdout)
		}
	}
}

func TestDoctor_Plain(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	if err := c.run("doctor", "--plain"); err != nil {
		t.Fatalf("doctor error = %v\n%s", err, c.stdout)
	}
	if !strings.HasPrefix(c.stdout.String(), "# zfsbe doctor") {
		t.Errorf("output = %s", c.stdout)
	}
}

func TestDoctor_FailureExitsOne(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	c.runner.Missing("zpool")
	err := c.run("doctor", "--plain")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitFailure {
		t.Fatalf("doctor error = %v, want exit 1", err)
	}
}

const testBootEnvs = "arch\tNR\t/\t2026-01-10 09:12\npre-upgrade\t-\t-\t2026-01-09 18:40\n"

func TestBootEnv_List(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	c.runner.On("zectl list -H", hostexec.FakeResponse{Stdout: testBootEnvs})
	if err := c.run("be", "list"); err != nil {
		t.Fatalf("be list error = %v\n%s", err, c.stderr)
	}
	for _, want := range []string{"arch", "pre-upgrade", "active, next boot"} {
		if !strings.Contains(c.stdout.String(), want) {
			t.Errorf("output missing %q:\n%s", want, c.stdout)
		}
	}
}

func TestBootEnv_CreateAndActivate(t *testing.T) {
	t.Parallel()

	c := newTestCLI(t)
	if err := c.run("be", "create", "before-kernel"); err != nil {
		t.Fatalf("be create error = %v\n%s", err, c.stderr)
	}
	if err := c.run("be", "activate", "before-kernel"); err != nil {
		t.Fatalf("be activate error = %v\n%s", err, c.stderr)
	}
	for _, cmd := range []string{"zectl create before-kernel", "zectl activate before-kernel"} {
		if !c.runner.Called(cmd) {
			t.Errorf("command %q not run; calls: %v", cmd, c.runner.Calls())
		}
	}
}

func TestBootEnv_Destroy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantDestroy bool
		wantOut     string
	}{
		{name: "active refused", args: []string{"be", "destroy", "arch", "--yes"}, wantErr: true},
		{name: "declined", args: []string{"be", "destroy", "pre-upgrade"}, wantOut: "kept pre-upgrade"},
		{name: "confirmed", args: []string{"be", "destroy", "pre-upgrade", "--yes"}, wantDestroy: true, wantOut: "Destroyed boot environment pre-upgrade"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestCLI(t)
			c.runner.On("zectl list -H", hostexec.FakeResponse{Stdout: testBootEnvs})
			err := c.run(tt.args...)
			if tt.wantErr {
				var exitErr *ExitError
				if !errors.As(err, &exitErr) {
					t.Fatalf("be destroy error = %v, want exit error", err)
				}
				if !strings.Contains(c.stderr.String(), "Activate another environment") {
					t.Errorf("stderr missing suggestion:\n%s", c.stderr)
				}
			} else if err != nil {
				t.Fatalf("be destroy error = %v\n%s", err, c.stderr)
			}

			destroyed := c.runner.CalledPrefix("zectl destroy")
			if destroyed != tt.wantDestroy {
				t.Errorf("destroy run = %v, want %v; calls: %v", destroyed, tt.wantDestroy, c.runner.Calls())
			}
			if tt.wantOut != "" && !strings.Contains(c.stdout.String(), tt.wantOut) {
				t.Errorf("output missing %q:\n%s", tt.wantOut, c.stdout)
			}
		})
	}
}
