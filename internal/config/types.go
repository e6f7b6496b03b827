// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zfsbe/zfsbe/pkg/types"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config is the root settings structure.
	Config struct {
		Detection  DetectionConfig  `json:"detection" mapstructure:"detection"`
		Overrides  OverridesConfig  `json:"overrides" mapstructure:"overrides"`
		Packages   PackagesConfig   `json:"packages" mapstructure:"packages"`
		Repository RepositoryConfig `json:"repository" mapstructure:"repository"`
		Services   ServicesConfig   `json:"services" mapstructure:"services"`
		Tools      ToolsConfig      `json:"tools" mapstructure:"tools"`
		SecureBoot SecureBootConfig `json:"secure_boot" mapstructure:"secure_boot"`
		UI         UIConfig         `json:"ui" mapstructure:"ui"`
	}

	// DetectionConfig holds the ordered candidate lists walked by the auto-detector.
	DetectionConfig struct {
		// PoolCandidates are tried in order when neither the root mount nor
		// the pool listing names a pool.
		PoolCandidates []types.PoolName `json:"pool_candidates" mapstructure:"pool_candidates"`
		// DatasetPatterns are fmt patterns with one %s for the pool name.
		DatasetPatterns []string                `json:"dataset_patterns" mapstructure:"dataset_patterns"`
		ESPCandidates   []types.ESPPath         `json:"esp_candidates" mapstructure:"esp_candidates"`
		GrubPaths       []string                `json:"grub_paths" mapstructure:"grub_paths"`
		RefindDirs      []string                `json:"refind_dirs" mapstructure:"refind_dirs"`
		DefaultLoader   types.BootloaderVariant `json:"default_bootloader" mapstructure:"default_bootloader"`
		DefaultESP      types.ESPPath           `json:"default_esp" mapstructure:"default_esp"`
	}

	// OverridesConfig pins detected values. Empty fields are detected.
	OverridesConfig struct {
		Pool        types.PoolName          `json:"pool,omitempty" mapstructure:"pool"`
		RootDataset types.DatasetName       `json:"root_dataset,omitempty" mapstructure:"root_dataset"`
		Bootloader  types.BootloaderVariant `json:"bootloader,omitempty" mapstructure:"bootloader"`
		ESP         types.ESPPath           `json:"esp,omitempty" mapstructure:"esp"`
	}

	// PackagesConfig lists the packages installed by "zfsbe install".
	PackagesConfig struct {
		Install []string `json:"install" mapstructure:"install"`
	}

	// RepositoryConfig describes the pacman repository added to pacman.conf.
	RepositoryConfig struct {
		Enabled  bool   `json:"enabled" mapstructure:"enabled"`
		Name     string `json:"name" mapstructure:"name"`
		Server   string `json:"server" mapstructure:"server"`
		KeyID    string `json:"key_id" mapstructure:"key_id"`
		ConfPath string `json:"conf_path" mapstructure:"conf_path"`
	}

	// ServicesConfig lists the systemd units enabled on install.
	ServicesConfig struct {
		Enable []string `json:"enable" mapstructure:"enable"`
	}

	// ToolsConfig names the external boot-environment and signing tools.
	ToolsConfig struct {
		BootEnv string `json:"boot_env" mapstructure:"boot_env"`
		Signer  string `json:"signer" mapstructure:"signer"`
	}

	// SecureBootConfig configures key handling and signing.
	SecureBootConfig struct {
		// Enabled controls whether the signing hook is installed.
		Enabled       bool   `json:"enabled" mapstructure:"enabled"`
		KeyDir        string `json:"key_dir" mapstructure:"key_dir"`
		KeyBackupDir  string `json:"key_backup_dir" mapstructure:"key_backup_dir"`
		MicrosoftKeys bool   `json:"microsoft_keys" mapstructure:"microsoft_keys"`
		KernelGlob    string `json:"kernel_glob" mapstructure:"kernel_glob"`
		// BundleOutput is the unified kernel image path relative to the ESP.
		// Empty disables bundling.
		BundleOutput string `json:"bundle_output" mapstructure:"bundle_output"`
		// BundleKernel and BundleInitramfs feed the unified kernel image.
		// Empty picks the first kernel_glob match and its initramfs.
		BundleKernel    string `json:"bundle_kernel" mapstructure:"bundle_kernel"`
		BundleInitramfs string `json:"bundle_initramfs" mapstructure:"bundle_initramfs"`
	}

	// UIConfig holds presentation settings.
	UIConfig struct {
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// InvalidConfigError collects every field-level validation failure.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Detection: DetectionConfig{
			PoolCandidates:  []types.PoolName{"zroot", "rpool", "tank", "zpool"},
			DatasetPatterns: []string{"%s/ROOT/default", "%s/ROOT/arch", "%s/ROOT/cachyos", "%s/ROOT", "%s/root"},
			ESPCandidates:   []types.ESPPath{"/boot/efi", "/efi", "/boot"},
			GrubPaths:       []string{"/boot/grub/grub.cfg", "/etc/default/grub"},
			RefindDirs:      []string{"/boot/efi/EFI/refind", "/efi/EFI/refind", "/boot/EFI/refind"},
			DefaultLoader:   types.BootloaderSystemdBoot,
			DefaultESP:      "/boot/efi",
		},
		Packages: PackagesConfig{
			Install: []string{"zectl", "sbctl", "efibootmgr"},
		},
		Repository: RepositoryConfig{
			Enabled:  true,
			Name:     "archzfs",
			Server:   "https://archzfs.com/$repo/$arch",
			KeyID:    "DDF7DB817396A49B2A2723F7403BD972F75D9D76",
			ConfPath: "/etc/pacman.conf",
		},
		Services: ServicesConfig{
			Enable: []string{"zfs-import-cache.service", "zfs-mount.service", "zfs.target"},
		},
		Tools: ToolsConfig{
			BootEnv: "zectl",
			Signer:  "sbctl",
		},
		SecureBoot: SecureBootConfig{
			Enabled:      true,
			KeyDir:       "/var/lib/sbctl/keys",
			KeyBackupDir: "/var/lib/zfsbe/keys-backup",
			KernelGlob:   "/boot/vmlinuz-*",
		},
	}
}

// Validate checks the typed fields that CUE cannot see after environment
// overrides are applied.
func (c *Config) Validate() error {
	var errs []error

	for _, p := range c.Detection.PoolCandidates {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("detection.pool_candidates: %w", err))
		}
	}
	for _, pat := range c.Detection.DatasetPatterns {
		if strings.Count(pat, "%s") != 1 || !strings.HasPrefix(pat, "%s") {
			errs = append(errs, fmt.Errorf("detection.dataset_patterns: %q must start with the single %%s pool placeholder", pat))
		}
	}
	for _, e := range c.Detection.ESPCandidates {
		if err := e.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("detection.esp_candidates: %w", err))
		}
	}
	if !c.Detection.DefaultLoader.IsKnown() {
		errs = append(errs, fmt.Errorf("detection.default_bootloader: %w", &types.InvalidBootloaderVariantError{Value: c.Detection.DefaultLoader}))
	}
	if err := c.Detection.DefaultESP.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detection.default_esp: %w", err))
	}

	if c.Overrides.Pool != "" {
		if err := c.Overrides.Pool.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("overrides.pool: %w", err))
		}
	}
	if c.Overrides.RootDataset != "" {
		if err := c.Overrides.RootDataset.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("overrides.root_dataset: %w", err))
		}
	}
	if c.Overrides.Bootloader != "" && !c.Overrides.Bootloader.IsKnown() {
		errs = append(errs, fmt.Errorf("overrides.bootloader: %w", &types.InvalidBootloaderVariantError{Value: c.Overrides.Bootloader}))
	}
	if c.Overrides.ESP != "" {
		if err := c.Overrides.ESP.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("overrides.esp: %w", err))
		}
	}

	if err := types.ToolName(c.Tools.BootEnv).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tools.boot_env: %w", err))
	}
	if err := types.ToolName(c.Tools.Signer).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tools.signer: %w", err))
	}
	if c.Repository.Enabled && (c.Repository.Name == "" || c.Repository.Server == "") {
		errs = append(errs, errors.New("repository: name and server are required when enabled"))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
