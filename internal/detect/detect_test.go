// SPDX-License-Identifier: MPL-2.0

package detect

import (
	"errors"
	"strings"
	"testing"

	"github.com/zfsbe/zfsbe/pkg/types"
)

func zfsRoot(source string) Mount {
	return Mount{Mountpoint: "/", FSType: "zfs", Source: source}
}

func espMount(path, fstype string) Mount {
	return Mount{Mountpoint: path, FSType: fstype, Source: "/dev/nvme0n1p1"}
}

func TestResolve_Pool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		facts      Facts
		override   types.PoolName
		wantPool   types.PoolName
		wantSource Source
	}{
		{
			name:       "root on zfs wins over listing",
			facts:      Facts{Mounts: []Mount{zfsRoot("rpool/ROOT/arch")}, Pools: []types.PoolName{"zroot", "rpool"}},
			wantPool:   "rpool",
			wantSource: SourceRootMount,
		},
		{
			name:       "root dataset is the pool itself",
			facts:      Facts{Mounts: []Mount{zfsRoot("tank")}},
			wantPool:   "tank",
			wantSource: SourceRootMount,
		},
		{
			name:       "non-zfs root falls back to first listed pool",
			facts:      Facts{Mounts: []Mount{{Mountpoint: "/", FSType: "ext4", Source: "/dev/sda2"}}, Pools: []types.PoolName{"data", "zroot"}},
			wantPool:   "data",
			wantSource: SourcePoolList,
		},
		{
			name:       "candidate that exists as dataset",
			facts:      Facts{Datasets: []types.DatasetName{"tank", "tank/home"}},
			wantPool:   "tank",
			wantSource: SourceCandidate,
		},
		{
			name:       "candidates are tried in order",
			facts:      Facts{Datasets: []types.DatasetName{"zpool", "rpool"}},
			wantPool:   "rpool",
			wantSource: SourceCandidate,
		},
		{
			name:       "override beats everything",
			facts:      Facts{Mounts: []Mount{zfsRoot("rpool/ROOT/arch")}},
			override:   "zroot",
			wantPool:   "zroot",
			wantSource: SourceOverride,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := DefaultPolicy()
			p.Overrides.Pool = tt.override

			got, err := Resolve(tt.facts, p)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Pool != tt.wantPool || got.PoolSource != tt.wantSource {
				t.Errorf("pool = %q (%s), want %q (%s)", got.Pool, got.PoolSource, tt.wantPool, tt.wantSource)
			}
		})
	}
}

func TestResolve_NoPoolIsFatal(t *testing.T) {
	t.Parallel()

	facts := Facts{
		Mounts:   []Mount{{Mountpoint: "/", FSType: "btrfs", Source: "/dev/sda2"}},
		Datasets: []types.DatasetName{"backup"},
	}
	_, err := Resolve(facts, DefaultPolicy())
	if !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrPoolNotFound", err)
	}
}

func TestResolve_Bootloader(t *testing.T) {
	t.Parallel()

	base := func() Facts {
		return Facts{Pools: []types.PoolName{"zroot"}, Existing: map[string]bool{}}
	}

	tests := []struct {
		name         string
		mutate       func(*Facts)
		override     types.BootloaderVariant
		want         types.BootloaderVariant
		wantDetected types.BootloaderVariant
		wantSource   Source
		wantWarning  bool
	}{
		{
			name:         "bootctl succeeds",
			mutate:       func(f *Facts) { f.BootctlOK = true; f.Existing["/boot/grub/grub.cfg"] = true },
			want:         types.BootloaderSystemdBoot,
			wantDetected: types.BootloaderSystemdBoot,
			wantSource:   SourceBootctl,
		},
		{
			name:         "grub config present",
			mutate:       func(f *Facts) { f.Existing["/etc/default/grub"] = true; f.Existing["/efi/EFI/refind"] = true },
			want:         types.BootloaderGrub,
			wantDetected: types.BootloaderGrub,
			wantSource:   SourceGrub,
		},
		{
			name:         "refind directory present",
			mutate:       func(f *Facts) { f.Existing["/boot/EFI/refind"] = true },
			want:         types.BootloaderRefind,
			wantDetected: types.BootloaderRefind,
			wantSource:   SourceRefind,
		},
		{
			name:         "nothing found defaults with warning",
			mutate:       func(*Facts) {},
			want:         types.BootloaderSystemdBoot,
			wantDetected: types.BootloaderUnknown,
			wantSource:   SourceDefault,
			wantWarning:  true,
		},
		{
			name:         "override",
			mutate:       func(f *Facts) { f.BootctlOK = true },
			override:     types.BootloaderRefind,
			want:         types.BootloaderRefind,
			wantDetected: types.BootloaderRefind,
			wantSource:   SourceOverride,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := base()
			tt.mutate(&f)
			p := DefaultPolicy()
			p.Overrides.Bootloader = tt.override

			got, err := Resolve(f, p)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Bootloader != tt.want || got.DetectedBootloader != tt.wantDetected || got.BootloaderSource != tt.wantSource {
				t.Errorf("bootloader = %q/%q (%s), want %q/%q (%s)",
					got.Bootloader, got.DetectedBootloader, got.BootloaderSource,
					tt.want, tt.wantDetected, tt.wantSource)
			}
			if hasWarning(got.Warnings, "bootloader") != tt.wantWarning {
				t.Errorf("warnings = %v, want bootloader warning = %v", got.Warnings, tt.wantWarning)
			}
		})
	}
}

func TestResolve_ESP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mounts      []Mount
		override    types.ESPPath
		want        types.ESPPath
		wantSource  Source
		wantWarning bool
	}{
		{
			name:       "first fat candidate",
			mounts:     []Mount{zfsRoot("zroot/ROOT/default"), espMount("/efi", "vfat"), espMount("/boot", "vfat")},
			want:       "/efi",
			wantSource: SourceMountScan,
		},
		{
			name:       "candidate order beats mount order",
			mounts:     []Mount{espMount("/boot", "vfat"), espMount("/boot/efi", "msdos")},
			want:       "/boot/efi",
			wantSource: SourceMountScan,
		},
		{
			name:        "non-fat mount is skipped",
			mounts:      []Mount{{Mountpoint: "/boot", FSType: "ext4", Source: "/dev/sda1"}},
			want:        "/boot/efi",
			wantSource:  SourceDefault,
			wantWarning: true,
		},
		{
			name:        "nothing mounted",
			want:        "/boot/efi",
			wantSource:  SourceDefault,
			wantWarning: true,
		},
		{
			name:       "override",
			mounts:     []Mount{espMount("/boot/efi", "vfat")},
			override:   "/efi",
			want:       "/efi",
			wantSource: SourceOverride,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := DefaultPolicy()
			p.Overrides.ESP = tt.override
			f := Facts{Mounts: tt.mounts, Pools: []types.PoolName{"zroot"}}

			got, err := Resolve(f, p)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.ESP != tt.want || got.ESPSource != tt.wantSource {
				t.Errorf("esp = %q (%s), want %q (%s)", got.ESP, got.ESPSource, tt.want, tt.wantSource)
			}
			if hasWarning(got.Warnings, "EFI system partition") != tt.wantWarning {
				t.Errorf("warnings = %v, want ESP warning = %v", got.Warnings, tt.wantWarning)
			}
		})
	}
}

func TestResolve_RootDataset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		facts       Facts
		override    types.DatasetName
		want        types.DatasetName
		wantParent  types.DatasetName
		wantSource  Source
		wantWarning bool
	}{
		{
			name:       "root mount source",
			facts:      Facts{Mounts: []Mount{zfsRoot("zroot/ROOT/cachyos")}},
			want:       "zroot/ROOT/cachyos",
			wantParent: "zroot/ROOT",
			wantSource: SourceRootMount,
		},
		{
			name: "first existing pattern",
			facts: Facts{
				Pools:    []types.PoolName{"rpool"},
				Datasets: []types.DatasetName{"rpool", "rpool/ROOT", "rpool/ROOT/arch"},
			},
			want:       "rpool/ROOT/arch",
			wantParent: "rpool/ROOT",
			wantSource: SourceCandidate,
		},
		{
			name: "bare ROOT container",
			facts: Facts{
				Pools:    []types.PoolName{"rpool"},
				Datasets: []types.DatasetName{"rpool", "rpool/ROOT"},
			},
			want:       "rpool/ROOT",
			wantParent: "rpool",
			wantSource: SourceCandidate,
		},
		{
			name:        "missing dataset degrades to first pattern",
			facts:       Facts{Pools: []types.PoolName{"tank"}, Datasets: []types.DatasetName{"tank"}},
			want:        "tank/ROOT/default",
			wantParent:  "tank/ROOT",
			wantSource:  SourceDefault,
			wantWarning: true,
		},
		{
			name:       "override",
			facts:      Facts{Mounts: []Mount{zfsRoot("zroot/ROOT/default")}},
			override:   "zroot/BE/main",
			want:       "zroot/BE/main",
			wantParent: "zroot/BE",
			wantSource: SourceOverride,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := DefaultPolicy()
			p.Overrides.RootDataset = tt.override

			got, err := Resolve(tt.facts, p)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.RootDataset != tt.want || got.RootDatasetSource != tt.wantSource {
				t.Errorf("root dataset = %q (%s), want %q (%s)", got.RootDataset, got.RootDatasetSource, tt.want, tt.wantSource)
			}
			if got.BootEnvRoot != tt.wantParent {
				t.Errorf("BootEnvRoot = %q, want %q", got.BootEnvRoot, tt.wantParent)
			}
			if hasWarning(got.Warnings, "root dataset") != tt.wantWarning {
				t.Errorf("warnings = %v, want root dataset warning = %v", got.Warnings, tt.wantWarning)
			}
		})
	}
}

func TestResolve_InvalidOverride(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		overrides Overrides
		target    error
	}{
		{name: "pool with slash", overrides: Overrides{Pool: "zroot/ROOT"}, target: types.ErrInvalidPoolName},
		{name: "snapshot as dataset", overrides: Overrides{RootDataset: "zroot/ROOT@snap"}, target: types.ErrInvalidDatasetName},
		{name: "unknown bootloader", overrides: Overrides{Bootloader: "lilo"}, target: types.ErrInvalidBootloaderVariant},
		{name: "relative esp", overrides: Overrides{ESP: "efi"}, target: types.ErrInvalidESPPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := DefaultPolicy()
			p.Overrides = tt.overrides
			_, err := Resolve(Facts{Pools: []types.PoolName{"zroot"}}, p)

			var ioe *InvalidOverrideError
			if !errors.As(err, &ioe) {
				t.Fatalf("Resolve() error = %v, want InvalidOverrideError", err)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.target)
			}
		})
	}
}

func TestResolve_CarriesProbeWarnings(t *testing.T) {
	t.Parallel()

	f := Facts{Pools: []types.PoolName{"zroot"}, Warnings: []string{"zfs list: permission denied"}}
	got, err := Resolve(f, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if !hasWarning(got.Warnings, "permission denied") {
		t.Errorf("warnings = %v", got.Warnings)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	f := Facts{
		Mounts:   []Mount{zfsRoot("zroot/ROOT/default"), espMount("/boot/efi", "vfat")},
		Pools:    []types.PoolName{"zroot"},
		Existing: map[string]bool{"/etc/default/grub": true},
	}
	a, errA := Resolve(f, DefaultPolicy())
	b, errB := Resolve(f, DefaultPolicy())
	if errA != nil || errB != nil {
		t.Fatalf("errors: %v, %v", errA, errB)
	}
	if a.Pool != b.Pool || a.RootDataset != b.RootDataset || a.ESP != b.ESP || a.Bootloader != b.Bootloader {
		t.Errorf("Resolve is not deterministic: %+v vs %+v", a, b)
	}
}

func TestFacts_MountAtPrefersLast(t *testing.T) {
	t.Parallel()

	f := Facts{Mounts: []Mount{
		{Mountpoint: "/", FSType: "ext4", Source: "/dev/sda2"},
		zfsRoot("zroot/ROOT/default"),
	}}
	m, ok := f.RootMount()
	if !ok || m.FSType != "zfs" {
		t.Errorf("RootMount() = %+v, %v", m, ok)
	}
}

func TestPolicyFromConfig_ProbePaths(t *testing.T) {
	t.Parallel()

	paths := DefaultPolicy().ProbePaths()
	for _, want := range []string{"/boot/grub/grub.cfg", "/etc/default/grub", "/boot/efi/EFI/refind", "/efi/EFI/refind", "/boot/EFI/refind"} {
		found := false
		for _, p := range paths {
			if p == want {
				found = true
			}
		}
		if !found {
			t.Errorf("ProbePaths() missing %q", want)
		}
	}
}

func TestResolved_FieldsMarksUndetectedBootloader(t *testing.T) {
	t.Parallel()

	r, err := Resolve(Facts{Pools: []types.PoolName{"zroot"}}, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	fields := r.Fields()
	if len(fields) != 5 {
		t.Fatalf("len(Fields()) = %d", len(fields))
	}
	if !strings.Contains(fields[1].Value, "not detected") {
		t.Errorf("bootloader field = %+v", fields[1])
	}
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
