// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
)

const (
	// BootloaderSystemdBoot is systemd-boot (bootctl).
	BootloaderSystemdBoot BootloaderVariant = "systemd-boot"
	// BootloaderGrub is GRUB 2.
	BootloaderGrub BootloaderVariant = "grub"
	// BootloaderRefind is rEFInd.
	BootloaderRefind BootloaderVariant = "refind"
	// BootloaderUnknown marks a host where no bootloader signature matched.
	BootloaderUnknown BootloaderVariant = "unknown"
)

// ErrInvalidBootloaderVariant is the sentinel error wrapped by InvalidBootloaderVariantError.
var ErrInvalidBootloaderVariant = errors.New("invalid bootloader variant")

type (
	// BootloaderVariant identifies the installed boot loader.
	BootloaderVariant string

	// InvalidBootloaderVariantError is returned for values outside the known set.
	InvalidBootloaderVariantError struct {
		Value BootloaderVariant
	}
)

// String returns the variant name.
func (b BootloaderVariant) String() string { return string(b) }

// IsKnown reports whether the variant is one zfsbe can configure and sign.
func (b BootloaderVariant) IsKnown() bool {
	switch b {
	case BootloaderSystemdBoot, BootloaderGrub, BootloaderRefind:
		return true
	}
	return false
}

// Validate accepts the three known variants and BootloaderUnknown.
func (b BootloaderVariant) Validate() error {
	if b.IsKnown() || b == BootloaderUnknown {
		return nil
	}
	return &InvalidBootloaderVariantError{Value: b}
}

// Error implements the error interface.
func (e *InvalidBootloaderVariantError) Error() string {
	return fmt.Sprintf("invalid bootloader variant %q (valid: systemd-boot, grub, refind, unknown)", e.Value)
}

// Unwrap returns ErrInvalidBootloaderVariant.
func (e *InvalidBootloaderVariantError) Unwrap() error { return ErrInvalidBootloaderVariant }
