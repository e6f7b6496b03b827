// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zfsbe/zfsbe/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "zfsbe"
	// ConfigFileName is the name of the settings file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the settings file extension.
	ConfigFileExt = "cue"
	// DefaultConfigDir is where settings live on the host.
	DefaultConfigDir = "/etc/zfsbe"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ZFSBE"

	// maxConfigFileSize guards against pointing --config at something huge.
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigPath returns the settings file path inside dir (DefaultConfigDir when empty).
//
//nolint:revive // ConfigPath reads better than Path for callers
func ConfigPath(dir string) string {
	if dir == "" {
		dir = DefaultConfigDir
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
}

// loadWithOptions performs option-driven loading. It returns the settings and
// the resolved file path ("" when only defaults and environment were used).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load settings").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'zfsbe config init' to write the default settings").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else if p := ConfigPath(opts.ConfigDirPath); fileExists(p) {
		resolvedPath = p
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load settings").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Compare with 'zfsbe config dump'").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate settings").
			WithResource(resolvedPath).
			WithSuggestion("Fix the listed fields or remove them to use the defaults").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// setDefaults registers every key so environment overrides are visible to Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("detection.pool_candidates", d.Detection.PoolCandidates)
	v.SetDefault("detection.dataset_patterns", d.Detection.DatasetPatterns)
	v.SetDefault("detection.esp_candidates", d.Detection.ESPCandidates)
	v.SetDefault("detection.grub_paths", d.Detection.GrubPaths)
	v.SetDefault("detection.refind_dirs", d.Detection.RefindDirs)
	v.SetDefault("detection.default_bootloader", d.Detection.DefaultLoader)
	v.SetDefault("detection.default_esp", d.Detection.DefaultESP)
	v.SetDefault("overrides.pool", d.Overrides.Pool)
	v.SetDefault("overrides.root_dataset", d.Overrides.RootDataset)
	v.SetDefault("overrides.bootloader", d.Overrides.Bootloader)
	v.SetDefault("overrides.esp", d.Overrides.ESP)
	v.SetDefault("packages.install", d.Packages.Install)
	v.SetDefault("repository.enabled", d.Repository.Enabled)
	v.SetDefault("repository.name", d.Repository.Name)
	v.SetDefault("repository.server", d.Repository.Server)
	v.SetDefault("repository.key_id", d.Repository.KeyID)
	v.SetDefault("repository.conf_path", d.Repository.ConfPath)
	v.SetDefault("services.enable", d.Services.Enable)
	v.SetDefault("tools.boot_env", d.Tools.BootEnv)
	v.SetDefault("tools.signer", d.Tools.Signer)
	v.SetDefault("secure_boot.enabled", d.SecureBoot.Enabled)
	v.SetDefault("secure_boot.key_dir", d.SecureBoot.KeyDir)
	v.SetDefault("secure_boot.key_backup_dir", d.SecureBoot.KeyBackupDir)
	v.SetDefault("secure_boot.microsoft_keys", d.SecureBoot.MicrosoftKeys)
	v.SetDefault("secure_boot.kernel_glob", d.SecureBoot.KernelGlob)
	v.SetDefault("secure_boot.bundle_output", d.SecureBoot.BundleOutput)
	v.SetDefault("secure_boot.bundle_kernel", d.SecureBoot.BundleKernel)
	v.SetDefault("secure_boot.bundle_initramfs", d.SecureBoot.BundleInitramfs)
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// loadCUEIntoViper parses a CUE file, validates it against #Config, and
// merges it into Viper. Concrete(false) because every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("config file is %d bytes, larger than the %d byte limit", len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// formatCUEError flattens a CUE error list into one message with positions.
func formatCUEError(err error) error {
	return fmt.Errorf("%s", strings.TrimSpace(cueerrors.Details(err, nil)))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// WriteDefault writes the default settings to path unless a file already exists.
// Returns true when a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE renders cfg as a CUE document accepted by the schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// zfsbe settings\n")
	sb.WriteString("// Omitted fields keep their built-in defaults.\n\n")

	sb.WriteString("detection: {\n")
	writeList(&sb, "\t", "pool_candidates", toStrings(cfg.Detection.PoolCandidates))
	writeList(&sb, "\t", "dataset_patterns", cfg.Detection.DatasetPatterns)
	writeList(&sb, "\t", "esp_candidates", toStrings(cfg.Detection.ESPCandidates))
	writeList(&sb, "\t", "grub_paths", cfg.Detection.GrubPaths)
	writeList(&sb, "\t", "refind_dirs", cfg.Detection.RefindDirs)
	fmt.Fprintf(&sb, "\tdefault_bootloader: %q\n", cfg.Detection.DefaultLoader)
	fmt.Fprintf(&sb, "\tdefault_esp:        %q\n", cfg.Detection.DefaultESP)
	sb.WriteString("}\n")

	sb.WriteString("\noverrides: {\n")
	writeOptional(&sb, "pool", string(cfg.Overrides.Pool))
	writeOptional(&sb, "root_dataset", string(cfg.Overrides.RootDataset))
	writeOptional(&sb, "bootloader", string(cfg.Overrides.Bootloader))
	writeOptional(&sb, "esp", string(cfg.Overrides.ESP))
	sb.WriteString("}\n")

	sb.WriteString("\npackages: {\n")
	writeList(&sb, "\t", "install", cfg.Packages.Install)
	sb.WriteString("}\n")

	sb.WriteString("\nrepository: {\n")
	fmt.Fprintf(&sb, "\tenabled:   %v\n", cfg.Repository.Enabled)
	fmt.Fprintf(&sb, "\tname:      %q\n", cfg.Repository.Name)
	fmt.Fprintf(&sb, "\tserver:    %q\n", cfg.Repository.Server)
	writeOptional(&sb, "key_id", cfg.Repository.KeyID)
	fmt.Fprintf(&sb, "\tconf_path: %q\n", cfg.Repository.ConfPath)
	sb.WriteString("}\n")

	sb.WriteString("\nservices: {\n")
	writeList(&sb, "\t", "enable", cfg.Services.Enable)
	sb.WriteString("}\n")

	sb.WriteString("\ntools: {\n")
	fmt.Fprintf(&sb, "\tboot_env: %q\n", cfg.Tools.BootEnv)
	fmt.Fprintf(&sb, "\tsigner:   %q\n", cfg.Tools.Signer)
	sb.WriteString("}\n")

	sb.WriteString("\nsecure_boot: {\n")
	fmt.Fprintf(&sb, "\tenabled:          %v\n", cfg.SecureBoot.Enabled)
	fmt.Fprintf(&sb, "\tkey_dir:          %q\n", cfg.SecureBoot.KeyDir)
	fmt.Fprintf(&sb, "\tkey_backup_dir:   %q\n", cfg.SecureBoot.KeyBackupDir)
	fmt.Fprintf(&sb, "\tmicrosoft_keys:   %v\n", cfg.SecureBoot.MicrosoftKeys)
	fmt.Fprintf(&sb, "\tkernel_glob:      %q\n", cfg.SecureBoot.KernelGlob)
	fmt.Fprintf(&sb, "\tbundle_output:    %q\n", cfg.SecureBoot.BundleOutput)
	fmt.Fprintf(&sb, "\tbundle_kernel:    %q\n", cfg.SecureBoot.BundleKernel)
	fmt.Fprintf(&sb, "\tbundle_initramfs: %q\n", cfg.SecureBoot.BundleInitramfs)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func writeList(sb *strings.Builder, indent, key string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(sb, "%s%s: []\n", indent, key)
		return
	}
	fmt.Fprintf(sb, "%s%s: [\n", indent, key)
	for _, item := range items {
		fmt.Fprintf(sb, "%s\t%q,\n", indent, item)
	}
	fmt.Fprintf(sb, "%s]\n", indent)
}

func writeOptional(sb *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "\t%s: %q\n", key, value)
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
