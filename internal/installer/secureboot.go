// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"
	"strings"

	"github.com/zfsbe/zfsbe/internal/artifacts"
	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/issue"
	"github.com/zfsbe/zfsbe/internal/secureboot"
	"github.com/zfsbe/zfsbe/internal/tui"
	"github.com/zfsbe/zfsbe/pkg/types"

	"github.com/hashicorp/go-multierror"
)

const (
	// DefaultBundleOutput is used by --bundle when no output is configured.
	DefaultBundleOutput = "EFI/Linux/linux.efi"
)

// SecureBootOptions tune the secure-boot plan.
type SecureBootOptions struct {
	// Microsoft also enrolls Microsoft's certificates.
	Microsoft bool
	// Bundle builds a signed unified kernel image.
	Bundle bool
}

type secureBoot struct {
	d        *Deps
	opts     SecureBootOptions
	resolved detect.Resolved
}

// SecureBootPlan builds the secure-boot plan.
func SecureBootPlan(d *Deps, opts SecureBootOptions) Plan {
	sb := &secureBoot{d: d, opts: opts}
	tool := d.Config.Tools.Signer

	steps := []Step{
		rootStep(d, "secureboot"),
		uefiStep(d),
		toolsStep(d, tool),
		{Name: "load configuration", Kind: KindPrecondition, Run: sb.load},
		{Name: "create keys", Kind: KindAction, Run: sb.createKeys},
		{Name: "back up keys", Kind: KindAction, Run: sb.backupKeys},
		{
			Name: "enroll keys",
			Kind: KindAction,
			Confirm: &tui.Question{
				Title:       "Enroll the Secure Boot keys into firmware?",
				Description: enrollDescription(opts.Microsoft),
			},
			Run: sb.enroll,
		},
		{Name: "sign boot files", Kind: KindAction, Run: sb.sign},
	}
	if opts.Bundle {
		steps = append(steps, Step{Name: "bundle unified kernel image", Kind: KindAction, Run: sb.bundle})
	}
	steps = append(steps, Step{Name: "verify signatures", Kind: KindAction, Run: sb.verify})

	return Plan{Name: "secureboot", Steps: steps}
}

func enrollDescription(microsoft bool) string {
	if microsoft {
		return "Microsoft's certificates are enrolled too, so option ROMs and Windows keep booting."
	}
	return "Only your own keys are enrolled. Firmware with signed option ROMs may need --microsoft."
}

// load prefers the generated config so signing matches what install wrote.
func (sb *secureBoot) load(ctx context.Context) error {
	values, err := sb.d.Store.ReadConfig(artifacts.ConfigPath)
	if err == nil && values["ZFSBE_BOOTLOADER"] != "" && values["ZFSBE_ESP"] != "" {
		sb.resolved = ResolvedFromConfig(values)
		sb.d.Logger.Info("using generated config", "bootloader", sb.resolved.Bootloader, "esp", sb.resolved.ESP)
		return nil
	}
	sb.d.Logger.Warn("generated config not readable, detecting", "path", artifacts.ConfigPath)
	r, err := Detect(ctx, sb.d)
	if err != nil {
		return err
	}
	sb.resolved = r
	return nil
}

// ResolvedFromConfig rebuilds a detection result from generated config values.
func ResolvedFromConfig(values map[string]string) detect.Resolved {
	return detect.Resolved{
		Pool:               types.PoolName(values["ZFSBE_POOL"]),
		PoolSource:         detect.SourceOverride,
		Bootloader:         types.BootloaderVariant(values["ZFSBE_BOOTLOADER"]),
		DetectedBootloader: types.BootloaderVariant(values["ZFSBE_BOOTLOADER"]),
		BootloaderSource:   detect.SourceOverride,
		ESP:                types.ESPPath(values["ZFSBE_ESP"]),
		ESPSource:          detect.SourceOverride,
		RootDataset:        types.DatasetName(values["ZFSBE_ROOT_DATASET"]),
		RootDatasetSource:  detect.SourceOverride,
		BootEnvRoot:        types.DatasetName(values["ZFSBE_BE_ROOT"]),
	}
}

func (sb *secureBoot) createKeys(ctx context.Context) error {
	st, err := sb.d.Signer.Status(ctx)
	if err != nil {
		return err
	}
	if st.Installed {
		return skip("keys already exist")
	}
	return sb.d.Signer.CreateKeys(ctx)
}

func (sb *secureBoot) backupKeys(context.Context) error {
	cfg := sb.d.Config.SecureBoot
	copied, err := sb.d.Keys.Backup(cfg.KeyDir, cfg.KeyBackupDir)
	if err != nil {
		return err
	}
	sb.recordKeyBackup(cfg.KeyBackupDir)
	if !copied {
		return skip("backup already present at " + cfg.KeyBackupDir)
	}
	sb.d.Logger.Info("backed up keys", "path", cfg.KeyBackupDir)
	return nil
}

// recordKeyBackup notes the backup in the install manifest when one exists.
func (sb *secureBoot) recordKeyBackup(dir string) {
	fs := sb.d.Store.Fs()
	m, err := artifacts.LoadManifest(fs, artifacts.ManifestPath)
	if err != nil || m.KeyBackup == dir {
		return
	}
	m.KeyBackup = dir
	if err := artifacts.SaveManifest(fs, artifacts.ManifestPath, m); err != nil {
		sb.d.Logger.Warn("could not record key backup in manifest", "err", err)
	}
}

func (sb *secureBoot) enroll(ctx context.Context) error {
	fw := secureboot.ReadFirmware(sb.d.Firmware)
	if !fw.CanEnroll() {
		return issue.NewErrorContext().
			WithOperation("enroll keys").
			WithSuggestion("Reboot into firmware setup, clear the Secure Boot keys to enter setup mode, then re-run 'zfsbe secureboot'").
			WithIssue(issue.NotSetupModeId).
			Wrap(ErrNotSetupMode).
			BuildError()
	}
	return sb.d.Signer.EnrollKeys(ctx, sb.opts.Microsoft)
}

func (sb *secureBoot) sign(ctx context.Context) error {
	files, err := secureboot.BootFiles(sb.d.Store.Fs(), sb.resolved.Bootloader, sb.resolved.ESP, sb.d.Config.SecureBoot.KernelGlob)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return skip("no boot files found")
	}
	var result *multierror.Error
	for _, f := range files {
		if err := sb.d.Signer.Sign(ctx, f); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (sb *secureBoot) bundle(ctx context.Context) error {
	out := sb.d.Config.SecureBoot.BundleOutput
	if out == "" {
		out = DefaultBundleOutput
	}
	kernel, initramfs, err := sb.bundleInputs()
	if err != nil {
		return err
	}
	return sb.d.Signer.Bundle(ctx, sb.resolved.ESP.Join(out), kernel, initramfs)
}

// bundleInputs prefers the configured kernel and initramfs over kernel_glob.
func (sb *secureBoot) bundleInputs() (kernel, initramfs string, err error) {
	cfg := sb.d.Config.SecureBoot
	if cfg.BundleKernel != "" {
		return cfg.BundleKernel, cfg.BundleInitramfs, nil
	}
	kernel, initramfs, err = secureboot.BundleInputs(sb.d.Store.Fs(), cfg.KernelGlob)
	if err != nil {
		return "", "", err
	}
	if cfg.BundleInitramfs != "" {
		initramfs = cfg.BundleInitramfs
	}
	sb.d.Logger.Info("bundling kernel", "kernel", kernel, "initramfs", initramfs)
	return kernel, initramfs, nil
}

func (sb *secureBoot) verify(ctx context.Context) error {
	res, err := sb.d.Signer.Verify(ctx)
	if err != nil {
		return err
	}
	if len(res.Unsigned) > 0 {
		return fmt.Errorf("%w: %s", ErrUnsigned, strings.Join(res.Unsigned, ", "))
	}
	return nil
}
