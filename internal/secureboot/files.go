// SPDX-License-Identifier: MPL-2.0

package secureboot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zfsbe/zfsbe/pkg/types"

	"github.com/otiai10/copy"
	"github.com/spf13/afero"
)

// fallbackLoader is the removable-media path firmware boots when no entry matches.
const fallbackLoader = "EFI/BOOT/BOOTX64.EFI"

// LoaderFiles returns the bootloader images of variant, relative to the ESP.
func LoaderFiles(variant types.BootloaderVariant) []string {
	switch variant {
	case types.BootloaderSystemdBoot:
		return []string{"EFI/systemd/systemd-bootx64.efi", fallbackLoader}
	case types.BootloaderGrub:
		return []string{"EFI/GRUB/grubx64.efi", fallbackLoader}
	case types.BootloaderRefind:
		return []string{"EFI/refind/refind_x64.efi", fallbackLoader}
	default:
		return []string{fallbackLoader}
	}
}

// LoaderPaths returns the absolute bootloader images of variant on esp.
func LoaderPaths(variant types.BootloaderVariant, esp types.ESPPath) []string {
	rel := LoaderFiles(variant)
	paths := make([]string, len(rel))
	for i, r := range rel {
		paths[i] = esp.Join(r)
	}
	return paths
}

// BootFiles returns the loader images and kernels that exist on fs, in a
// stable order: loaders first, then kernels sorted by name.
func BootFiles(fs afero.Fs, variant types.BootloaderVariant, esp types.ESPPath, kernelGlob string) ([]string, error) {
	var files []string
	for _, p := range LoaderPaths(variant, esp) {
		if ok, err := afero.Exists(fs, p); err == nil && ok {
			files = append(files, p)
		}
	}

	if kernelGlob != "" {
		kernels, err := afero.Glob(fs, kernelGlob)
		if err != nil {
			return nil, fmt.Errorf("match kernels %s: %w", kernelGlob, err)
		}
		slices.Sort(kernels)
		files = append(files, kernels...)
	}
	return files, nil
}

// ErrNoKernel is returned when no kernel matches the configured glob.
var ErrNoKernel = errors.New("no kernel found")

// BundleInputs picks the kernel and initramfs for a unified kernel image: the
// first kernelGlob match in name order, and the initramfs mkinitcpio writes
// next to it (vmlinuz-<name> pairs with initramfs-<name>.img). initramfs is
// empty when the kernel does not follow that naming.
func BundleInputs(fs afero.Fs, kernelGlob string) (kernel, initramfs string, err error) {
	matches, err := afero.Glob(fs, kernelGlob)
	if err != nil {
		return "", "", fmt.Errorf("match kernels %s: %w", kernelGlob, err)
	}
	if len(matches) == 0 {
		return "", "", fmt.Errorf("%w: %s", ErrNoKernel, kernelGlob)
	}
	slices.Sort(matches)
	kernel = matches[0]

	dir, base := filepath.Split(kernel)
	if name, ok := strings.CutPrefix(base, "vmlinuz-"); ok {
		candidate := filepath.Join(dir, "initramfs-"+name+".img")
		if ok, err := afero.Exists(fs, candidate); err == nil && ok {
			initramfs = candidate
		}
	}
	return kernel, initramfs, nil
}

// BackupKeys copies the key directory src to dst unless dst already exists.
// It reports whether a copy was made.
func BackupKeys(src, dst string) (bool, error) {
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("key directory %s: %w", src, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("key directory %s is not a directory", src)
	}
	if err := copy.Copy(src, dst, copy.Options{Sync: true}); err != nil {
		return false, fmt.Errorf("back up keys to %s: %w", dst, err)
	}
	// private keys: keep the backup root-only regardless of the source mode
	if err := os.Chmod(dst, 0o700); err != nil {
		return false, fmt.Errorf("restrict %s: %w", dst, err)
	}
	return true, nil
}

// KeyDir backs up and purges key directories on the host file system,
// optionally below Root.
type KeyDir struct {
	Root string
}

// Backup copies src to dst once. See BackupKeys.
func (k KeyDir) Backup(src, dst string) (bool, error) {
	return BackupKeys(k.path(src), k.path(dst))
}

// Purge deletes the backup at dst.
func (k KeyDir) Purge(dst string) error {
	return os.RemoveAll(k.path(dst))
}

func (k KeyDir) path(p string) string {
	if k.Root == "" {
		return p
	}
	return filepath.Join(k.Root, p)
}
