// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/zfsbe/zfsbe/internal/issue"
	"github.com/zfsbe/zfsbe/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig_Validates(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	t.Parallel()

	if got := ConfigPath(""); got != "/etc/zfsbe/config.cue" {
		t.Errorf("ConfigPath(\"\") = %q", got)
	}
	if got := ConfigPath("/tmp/x"); got != "/tmp/x/config.cue" {
		t.Errorf("ConfigPath(/tmp/x) = %q", got)
	}
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty", path)
	}
	want := DefaultConfig()
	if !slices.Equal(cfg.Detection.PoolCandidates, want.Detection.PoolCandidates) {
		t.Errorf("PoolCandidates = %v, want %v", cfg.Detection.PoolCandidates, want.Detection.PoolCandidates)
	}
	if cfg.Detection.DefaultLoader != types.BootloaderSystemdBoot {
		t.Errorf("DefaultLoader = %q", cfg.Detection.DefaultLoader)
	}
	if cfg.Tools.BootEnv != "zectl" || cfg.Tools.Signer != "sbctl" {
		t.Errorf("Tools = %+v", cfg.Tools)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
overrides: {
	pool:       "tank"
	bootloader: "grub"
}
detection: pool_candidates: ["data", "zroot"]
secure_boot: microsoft_keys: true
`)

	cfg, resolved, err := loadWithOptions(t.Context(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Overrides.Pool != "tank" {
		t.Errorf("Overrides.Pool = %q", cfg.Overrides.Pool)
	}
	if cfg.Overrides.Bootloader != types.BootloaderGrub {
		t.Errorf("Overrides.Bootloader = %q", cfg.Overrides.Bootloader)
	}
	if !slices.Equal(cfg.Detection.PoolCandidates, []types.PoolName{"data", "zroot"}) {
		t.Errorf("PoolCandidates = %v", cfg.Detection.PoolCandidates)
	}
	if !cfg.SecureBoot.MicrosoftKeys {
		t.Error("SecureBoot.MicrosoftKeys = false, want true")
	}
	// untouched sections keep their defaults
	if cfg.Repository.Name != "archzfs" {
		t.Errorf("Repository.Name = %q", cfg.Repository.Name)
	}
}

func TestLoad_DirLookup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(ConfigPath(dir), []byte(`overrides: esp: "/efi"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if resolved != ConfigPath(dir) {
		t.Errorf("resolved = %q", resolved)
	}
	if cfg.Overrides.ESP != "/efi" {
		t.Errorf("Overrides.ESP = %q", cfg.Overrides.ESP)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ZFSBE_OVERRIDES_POOL", "rpool")
	t.Setenv("ZFSBE_TOOLS_SIGNER", "sbsign")

	cfg, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if cfg.Overrides.Pool != "rpool" {
		t.Errorf("Overrides.Pool = %q, want rpool", cfg.Overrides.Pool)
	}
	if cfg.Tools.Signer != "sbsign" {
		t.Errorf("Tools.Signer = %q, want sbsign", cfg.Tools.Signer)
	}
}

func TestLoad_EnvOverrideRejectsUnsafeToolName(t *testing.T) {
	t.Setenv("ZFSBE_TOOLS_BOOT_ENV", `zectl"; reboot; echo "`)

	_, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("loadWithOptions() error = %v, want ErrInvalidConfig", err)
	}
	if !errors.Is(err, types.ErrInvalidToolName) {
		t.Errorf("error does not wrap ErrInvalidToolName: %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "syntax error",
			content: "overrides: {",
			wantMsg: "load settings",
		},
		{
			name:    "unknown bootloader",
			content: `overrides: bootloader: "lilo"`,
			wantMsg: "bootloader",
		},
		{
			name:    "unknown field",
			content: `detection: colour: "red"`,
			wantMsg: "colour",
		},
		{
			name:    "relative esp",
			content: `overrides: esp: "boot/efi"`,
			wantMsg: "esp",
		},
		{
			name:    "tool name with shell syntax",
			content: `tools: signer: "sbctl$(reboot)"`,
			wantMsg: "signer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tt.content)
			_, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("expected error")
			}
			if issue.IssueOf(err) != issue.ConfigLoadFailedId {
				t.Errorf("IssueOf() = %v, want ConfigLoadFailedId", issue.IssueOf(err))
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error %T is not an ActionableError", err)
			}
			if !strings.Contains(ae.Format(true), tt.wantMsg) {
				t.Errorf("Format() = %q, want it to mention %q", ae.Format(true), tt.wantMsg)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v", err)
	}
}

func TestGenerateCUE_AcceptedBySchema(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Overrides.Pool = "zroot"
	cfg.Overrides.RootDataset = "zroot/ROOT/default"
	cfg.Overrides.Bootloader = types.BootloaderRefind
	cfg.Overrides.ESP = "/efi"

	path := writeConfig(t, GenerateCUE(cfg))
	got, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("generated CUE rejected: %v", err)
	}
	if got.Overrides != cfg.Overrides {
		t.Errorf("Overrides = %+v, want %+v", got.Overrides, cfg.Overrides)
	}
	if !slices.Equal(got.Services.Enable, cfg.Services.Enable) {
		t.Errorf("Services.Enable = %v", got.Services.Enable)
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.cue")

	wrote, err := WriteDefault(path)
	if err != nil || !wrote {
		t.Fatalf("WriteDefault() = %v, %v", wrote, err)
	}
	if err := os.WriteFile(path, []byte("// edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wrote, err = WriteDefault(path)
	if err != nil || wrote {
		t.Fatalf("second WriteDefault() = %v, %v, want false, nil", wrote, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "// edited\n" {
		t.Error("WriteDefault overwrote an existing file")
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Detection.PoolCandidates = []types.PoolName{"1bad"}
	cfg.Detection.DatasetPatterns = []string{"ROOT/%s"}
	cfg.Overrides.Bootloader = "lilo"
	cfg.Tools.Signer = ""

	err := cfg.Validate()
	var ice *InvalidConfigError
	if !errors.As(err, &ice) {
		t.Fatalf("Validate() = %v, want InvalidConfigError", err)
	}
	if len(ice.FieldErrors) != 4 {
		t.Errorf("got %d field errors, want 4: %v", len(ice.FieldErrors), ice.FieldErrors)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("errors.Is(err, ErrInvalidConfig) = false")
	}
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()

	cfg, err := StaticProvider{}.Load(t.Context(), LoadOptions{})
	if err != nil || cfg == nil {
		t.Fatalf("StaticProvider{}.Load() = %v, %v", cfg, err)
	}
	custom := DefaultConfig()
	custom.UI.Verbose = true
	got, _ := StaticProvider{Config: custom}.Load(t.Context(), LoadOptions{})
	if got != custom {
		t.Error("StaticProvider did not return the supplied config")
	}
}
