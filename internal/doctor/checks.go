// SPDX-License-Identifier: MPL-2.0

package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zfsbe/zfsbe/internal/artifacts"
	"github.com/zfsbe/zfsbe/internal/bootenv"
	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/pacman"
	"github.com/zfsbe/zfsbe/internal/secureboot"
	"github.com/zfsbe/zfsbe/internal/service"
)

// Section titles.
const (
	SectionPrivileges = "Privileges"
	SectionTools      = "Required tools"
	SectionFirmware   = "Firmware"
	SectionDetection  = "Detection"
	SectionArtifacts  = "Generated artifacts"
	SectionHooks      = "Pacman hooks"
	SectionBootEnvs   = "Boot environments"
	SectionServices   = "Services"
	SectionSigning    = "Signing"
)

// requiredTools must exist before install can run.
var requiredTools = []string{"zfs", "zpool", "pacman"}

// comparedKeys are the generated-config keys checked against detection.
var comparedKeys = []string{"ZFSBE_POOL", "ZFSBE_ROOT_DATASET", "ZFSBE_BOOTLOADER", "ZFSBE_ESP"}

func (d *doctor) privileges() Section {
	sec := Section{Title: SectionPrivileges}
	if d.src.Prober.IsRoot() {
		sec.add("root", StatusOK, "running as root")
	} else {
		sec.add("root", StatusWarn, "not root; install, uninstall and secureboot need sudo and some checks may be incomplete")
	}
	return sec
}

func (d *doctor) tools() Section {
	sec := Section{Title: SectionTools}
	cfg := d.src.Config
	optional := []string{cfg.Tools.BootEnv, cfg.Tools.Signer, "bootctl"}

	for _, name := range d.src.Prober.MissingTools(append(append([]string{}, requiredTools...), optional...)...) {
		d.missing[name] = true
	}
	for _, name := range requiredTools {
		if d.missing[name] {
			sec.add(name, StatusFail, "not found on PATH")
		} else {
			sec.add(name, StatusOK, "")
		}
	}
	for _, name := range optional {
		if d.missing[name] {
			sec.add(name, StatusWarn, "not found on PATH; run 'zfsbe install'")
		} else {
			sec.add(name, StatusOK, "")
		}
	}
	return sec
}

func (d *doctor) firmwareSection() Section {
	sec := Section{Title: SectionFirmware}
	if !d.src.Prober.HasUEFI() {
		sec.add("UEFI", StatusFail, "booted in legacy BIOS mode")
		return sec
	}
	sec.add("UEFI", StatusOK, "")

	d.firmware = secureboot.ReadFirmware(d.src.Firmware)
	if d.firmware.SecureBoot {
		sec.add("Secure Boot", StatusOK, "enabled")
	} else {
		sec.add("Secure Boot", StatusInfo, "disabled")
	}
	if d.firmware.SetupMode {
		sec.add("Setup Mode", StatusInfo, "enabled; keys can be enrolled")
	} else {
		sec.add("Setup Mode", StatusInfo, "disabled")
	}
	return sec
}

func (d *doctor) detection(ctx context.Context) Section {
	sec := Section{Title: SectionDetection}
	policy := detect.PolicyFromConfig(d.src.Config)
	r, err := detect.Resolve(d.src.Prober.Collect(ctx, policy), policy)
	if err != nil {
		if errors.Is(err, detect.ErrPoolNotFound) {
			sec.add("pool", StatusFail, "no ZFS pool found; import one with 'zpool import'")
		} else {
			sec.add("overrides", StatusFail, err.Error())
		}
		return sec
	}
	d.resolved = &r

	for _, f := range r.Fields() {
		sec.add(f.Name, StatusOK, fmt.Sprintf("%s (%s)", f.Value, f.Source))
	}
	for _, w := range r.Warnings {
		sec.add("warning", StatusWarn, w)
	}
	return sec
}

func (d *doctor) artifactsSection() Section {
	sec := Section{Title: SectionArtifacts}
	store := d.src.Store

	if !store.Exists(artifacts.ConfigPath) {
		sec.add(artifacts.ConfigPath, StatusWarn, "missing; run 'zfsbe install'")
	} else if values, err := store.ReadConfig(artifacts.ConfigPath); err != nil {
		sec.add(artifacts.ConfigPath, StatusFail, err.Error())
	} else {
		sec.add(artifacts.ConfigPath, StatusOK, "")
		d.compareConfig(&sec, values)
	}

	for _, p := range []string{artifacts.BootEnvWrapperPath(), artifacts.SignWrapperPath()} {
		d.checkScript(&sec, p)
	}

	if store.Exists(artifacts.ManifestPath) {
		if _, err := artifacts.LoadManifest(store.Fs(), artifacts.ManifestPath); err != nil {
			sec.add("install manifest", StatusWarn, err.Error())
		} else {
			sec.add("install manifest", StatusOK, artifacts.ManifestPath)
		}
	} else {
		sec.add("install manifest", StatusInfo, "not present")
	}
	return sec
}

// compareConfig flags generated values that no longer match detection.
func (d *doctor) compareConfig(sec *Section, values map[string]string) {
	if d.resolved == nil {
		return
	}
	want := artifacts.ConfigValues(*d.resolved, artifacts.Settings{})
	var stale []string
	for _, k := range comparedKeys {
		if values[k] != want[k] {
			stale = append(stale, fmt.Sprintf("%s=%q (detected %q)", k, values[k], want[k]))
		}
	}
	if len(stale) == 0 {
		sec.add("matches detection", StatusOK, "")
		return
	}
	sec.add("matches detection", StatusWarn, strings.Join(stale, "; ")+"; re-run 'zfsbe install'")
}

func (d *doctor) checkScript(sec *Section, path string) {
	data, err := readFile(d.src.Store, path)
	switch {
	case errors.Is(err, errMissing):
		sec.add(path, StatusWarn, "missing; run 'zfsbe install'")
	case err != nil:
		sec.add(path, StatusFail, err.Error())
	default:
		if err := artifacts.ValidateScript(path, data); err != nil {
			sec.add(path, StatusFail, err.Error())
			return
		}
		sec.add(path, StatusOK, "")
	}
}

func (d *doctor) hooks() Section {
	sec := Section{Title: SectionHooks}
	if d.src.Store.Exists(pacman.SnapshotHookPath()) {
		sec.add(pacman.SnapshotHookName, StatusOK, "snapshots before every transaction")
	} else {
		sec.add(pacman.SnapshotHookName, StatusWarn, "missing; no boot environment is created before upgrades")
	}

	signHook := d.src.Store.Exists(pacman.SignHookPath())
	switch {
	case signHook:
		sec.add(pacman.SignHookName, StatusOK, "re-signs boot files after kernel and loader updates")
	case d.src.Config.SecureBoot.Enabled:
		sec.add(pacman.SignHookName, StatusWarn, "missing; boot files are not re-signed after updates")
	default:
		sec.add(pacman.SignHookName, StatusInfo, "secure boot signing disabled")
	}
	return sec
}

func (d *doctor) bootEnvironments(ctx context.Context) Section {
	sec := Section{Title: SectionBootEnvs}
	be := d.src.BootEnv
	if be == nil {
		return sec
	}
	if d.missing[be.Tool()] {
		sec.add(be.Tool(), StatusInfo, "not installed; boot environments not checked")
		return sec
	}

	entries, err := be.List(ctx)
	switch {
	case err != nil:
		sec.add("environments", StatusWarn, err.Error())
	case len(entries) == 0:
		sec.add("environments", StatusWarn, "none found; the next pacman transaction creates one, or run 'zfsbe be create <name>'")
	default:
		sec.add("environments", StatusOK, fmt.Sprintf("%d found", len(entries)))
		d.activeEnvironments(&sec, entries)
	}

	d.bootloaderPlugin(ctx, &sec)
	return sec
}

func (d *doctor) activeEnvironments(sec *Section, entries []bootenv.Entry) {
	var active, next string
	for _, e := range entries {
		if e.Active {
			active = e.Name
		}
		if e.NextBoot {
			next = e.Name
		}
	}
	if active == "" {
		sec.add("active", StatusWarn, "no environment is marked active; / may not be mounted from a boot environment")
	} else {
		sec.add("active", StatusOK, active)
	}
	switch {
	case next == "":
		sec.add("next boot", StatusWarn, "no environment is marked for the next boot")
	case next != active:
		sec.add("next boot", StatusInfo, next+" (differs from the active environment)")
	default:
		sec.add("next boot", StatusOK, next)
	}
}

// bootloaderPlugin compares the tool's bootloader property with the plugin
// the detected bootloader needs.
func (d *doctor) bootloaderPlugin(ctx context.Context, sec *Section) {
	if d.resolved == nil {
		return
	}
	want, ok := bootenv.PluginName(d.resolved.Bootloader)
	if !ok {
		sec.add("bootloader plugin", StatusInfo, fmt.Sprintf("%s has no %s plugin", d.resolved.Bootloader, d.src.BootEnv.Tool()))
		return
	}
	got, err := d.src.BootEnv.GetProperty(ctx, "bootloader")
	switch {
	case err != nil:
		sec.add("bootloader plugin", StatusWarn, err.Error())
	case got != want:
		sec.add("bootloader plugin", StatusWarn, fmt.Sprintf("%q configured, %q needed for %s; re-run 'zfsbe install'", got, want, d.resolved.Bootloader))
	default:
		sec.add("bootloader plugin", StatusOK, got)
	}
}

func (d *doctor) services(ctx context.Context) Section {
	sec := Section{Title: SectionServices}
	for _, unit := range d.src.Config.Services.Enable {
		state, err := d.src.Units.State(ctx, unit)
		switch {
		case err != nil:
			sec.add(unit, StatusWarn, err.Error())
		case state == service.StateEnabled || state == service.StateStatic:
			sec.add(unit, StatusOK, state)
		case state == service.StateNotFound:
			sec.add(unit, StatusWarn, "not installed")
		default:
			sec.add(unit, StatusWarn, state)
		}
	}
	return sec
}

func (d *doctor) signing(ctx context.Context) Section {
	sec := Section{Title: SectionSigning}
	signer := d.src.Signer
	if d.missing[signer.Tool()] {
		sec.add(signer.Tool(), StatusInfo, "not installed; signing not checked")
		return sec
	}

	st, err := signer.Status(ctx)
	switch {
	case err != nil:
		sec.add("keys", StatusWarn, err.Error())
	case st.Installed:
		sec.add("keys", StatusOK, "created")
	default:
		sec.add("keys", StatusInfo, "not created; run 'zfsbe secureboot'")
	}

	res, err := signer.Verify(ctx)
	sec.Output = strings.TrimSpace(res.Output)
	switch {
	case len(res.Unsigned) > 0:
		// unsigned files only stop the boot when firmware enforces signatures
		status := StatusWarn
		if d.firmware.SecureBoot {
			status = StatusFail
		}
		sec.add("boot files", status, "unsigned: "+strings.Join(res.Unsigned, ", "))
	case err != nil:
		sec.add("boot files", StatusWarn, err.Error())
	default:
		sec.add("boot files", StatusOK, "all signed")
	}
	return sec
}
