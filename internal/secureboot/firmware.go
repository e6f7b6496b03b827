// SPDX-License-Identifier: MPL-2.0

package secureboot

import "github.com/foxboron/go-uefi/efi"

type (
	// Firmware reports the Secure Boot related EFI variables.
	Firmware interface {
		SecureBoot() bool
		SetupMode() bool
	}

	// EFIVars reads the SecureBoot and SetupMode variables from efivarfs.
	EFIVars struct{}

	// StaticFirmware is a fixed Firmware for tests and dry runs.
	StaticFirmware struct {
		Enabled bool
		Setup   bool
	}

	// FirmwareState is a snapshot of the firmware variables.
	FirmwareState struct {
		SecureBoot bool `json:"secure_boot"`
		SetupMode  bool `json:"setup_mode"`
	}
)

// SecureBoot implements Firmware.
func (EFIVars) SecureBoot() bool { return efi.GetSecureBoot() }

// SetupMode implements Firmware.
func (EFIVars) SetupMode() bool { return efi.GetSetupMode() }

// SecureBoot implements Firmware.
func (f StaticFirmware) SecureBoot() bool { return f.Enabled }

// SetupMode implements Firmware.
func (f StaticFirmware) SetupMode() bool { return f.Setup }

// ReadFirmware snapshots fw.
func ReadFirmware(fw Firmware) FirmwareState {
	return FirmwareState{SecureBoot: fw.SecureBoot(), SetupMode: fw.SetupMode()}
}

// CanEnroll reports whether keys can be enrolled without firmware help.
func (s FirmwareState) CanEnroll() bool { return s.SetupMode }
