// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestExitCodeValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     ExitCode
		wantValid bool
	}{
		{name: "success", value: ExitSuccess, wantValid: true},
		{name: "precondition", value: ExitPrecondition, wantValid: true},
		{name: "255 is valid", value: 255, wantValid: true},
		{name: "negative is invalid", value: -1, wantValid: false},
		{name: "256 is invalid", value: 256, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.value.Validate()
			if (err == nil) != tt.wantValid {
				t.Fatalf("ExitCode(%d).Validate() error = %v, wantValid %v", tt.value, err, tt.wantValid)
			}
			if !tt.wantValid && !errors.Is(err, ErrInvalidExitCode) {
				t.Errorf("error does not wrap ErrInvalidExitCode: %v", err)
			}
		})
	}
}

func TestPoolNameValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value     PoolName
		wantValid bool
	}{
		{"zroot", true},
		{"rpool", true},
		{"", false},
		{"zroot/ROOT", false},
		{"z root", false},
		{"1pool", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			t.Parallel()

			err := tt.value.Validate()
			if (err == nil) != tt.wantValid {
				t.Fatalf("PoolName(%q).Validate() error = %v, wantValid %v", tt.value, err, tt.wantValid)
			}
			if err != nil {
				var pErr *InvalidPoolNameError
				if !errors.As(err, &pErr) {
					t.Fatalf("error should be *InvalidPoolNameError, got %T", err)
				}
				if !errors.Is(err, ErrInvalidPoolName) {
					t.Errorf("error does not wrap ErrInvalidPoolName: %v", err)
				}
			}
		})
	}
}

func TestDatasetName(t *testing.T) {
	t.Parallel()

	t.Run("pool and parent", func(t *testing.T) {
		t.Parallel()

		d := DatasetName("zroot/ROOT/default")
		if got := d.Pool(); got != "zroot" {
			t.Errorf("Pool() = %q, want %q", got, "zroot")
		}
		if got := d.Parent(); got != "zroot/ROOT" {
			t.Errorf("Parent() = %q, want %q", got, "zroot/ROOT")
		}
		if got := DatasetName("zroot").Parent(); got != "" {
			t.Errorf("Parent() of pool root = %q, want empty", got)
		}
	})

	t.Run("validate", func(t *testing.T) {
		t.Parallel()

		valid := []DatasetName{"zroot", "zroot/ROOT/default", "rpool/root"}
		for _, d := range valid {
			if err := d.Validate(); err != nil {
				t.Errorf("DatasetName(%q).Validate() = %v, want nil", d, err)
			}
		}
		invalid := []DatasetName{"", "/zroot", "zroot/", "zroot//ROOT", "zroot/ROOT@snap", "zroot/my root"}
		for _, d := range invalid {
			err := d.Validate()
			if err == nil {
				t.Errorf("DatasetName(%q).Validate() = nil, want error", d)
				continue
			}
			if !errors.Is(err, ErrInvalidDatasetName) {
				t.Errorf("DatasetName(%q) error does not wrap ErrInvalidDatasetName: %v", d, err)
			}
		}
	})
}

func TestBootloaderVariant(t *testing.T) {
	t.Parallel()

	for _, v := range []BootloaderVariant{BootloaderSystemdBoot, BootloaderGrub, BootloaderRefind} {
		if !v.IsKnown() {
			t.Errorf("%q.IsKnown() = false, want true", v)
		}
		if err := v.Validate(); err != nil {
			t.Errorf("%q.Validate() = %v", v, err)
		}
	}
	if BootloaderUnknown.IsKnown() {
		t.Error("unknown should not be a known variant")
	}
	if err := BootloaderUnknown.Validate(); err != nil {
		t.Errorf("unknown should validate, got %v", err)
	}
	err := BootloaderVariant("lilo").Validate()
	if !errors.Is(err, ErrInvalidBootloaderVariant) {
		t.Errorf("lilo error = %v, want ErrInvalidBootloaderVariant", err)
	}
}

func TestESPPath(t *testing.T) {
	t.Parallel()

	if got := ESPPath("/boot/efi").Join("EFI", "BOOT", "BOOTX64.EFI"); got != "/boot/efi/EFI/BOOT/BOOTX64.EFI" {
		t.Errorf("Join() = %q", got)
	}

	tests := []struct {
		value     ESPPath
		wantValid bool
	}{
		{"/boot/efi", true},
		{"/efi", true},
		{"/", true},
		{"", false},
		{"boot/efi", false},
		{"/boot/efi/", false},
		{"/boot/../efi", false},
	}
	for _, tt := range tests {
		err := tt.value.Validate()
		if (err == nil) != tt.wantValid {
			t.Errorf("ESPPath(%q).Validate() = %v, wantValid %v", tt.value, err, tt.wantValid)
		}
		if err != nil && !errors.Is(err, ErrInvalidESPPath) {
			t.Errorf("ESPPath(%q) error does not wrap ErrInvalidESPPath", tt.value)
		}
	}
}

func TestToolNameValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value     ToolName
		wantValid bool
	}{
		{"zectl", true},
		{"/usr/local/bin/sbctl", true},
		{"sb_ctl-2.0", true},
		{"", false},
		{`zectl"; touch /tmp/x; echo "`, false},
		{"zectl$(id)", false},
		{"zectl `id`", false},
		{"zectl list", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			t.Parallel()

			err := tt.value.Validate()
			if (err == nil) != tt.wantValid {
				t.Fatalf("ToolName(%q).Validate() error = %v, wantValid %v", tt.value, err, tt.wantValid)
			}
			if err != nil && !errors.Is(err, ErrInvalidToolName) {
				t.Errorf("error does not wrap ErrInvalidToolName: %v", err)
			}
		})
	}
}
