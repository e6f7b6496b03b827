// SPDX-License-Identifier: MPL-2.0

package artifacts

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/zfsbe/zfsbe/internal/detect"
	"github.com/zfsbe/zfsbe/internal/pacman"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// ManifestVersion is bumped when the manifest layout changes incompatibly.
const ManifestVersion = 1

// ErrManifestNotFound is returned by LoadManifest when no manifest exists.
var ErrManifestNotFound = errors.New("install manifest not found")

type (
	// Manifest records the state install created so uninstall can undo
	// exactly that.
	Manifest struct {
		Version  int              `toml:"version"`
		Resolved ResolvedRecord   `toml:"resolved"`
		Files    []ManifestFile   `toml:"files"`
		Dirs     []string         `toml:"dirs"`
		Backups  []ManifestBackup `toml:"backups"`
		Units    []string         `toml:"units"`
		Packages []string         `toml:"packages"`
		// KeyBackup is the key backup directory, when one was made.
		KeyBackup string `toml:"key_backup,omitempty"`
	}

	// ResolvedRecord is the detection outcome install acted on.
	ResolvedRecord struct {
		Pool        string `toml:"pool"`
		RootDataset string `toml:"root_dataset"`
		BootEnvRoot string `toml:"boot_env_root"`
		Bootloader  string `toml:"bootloader"`
		ESP         string `toml:"esp"`
	}

	// ManifestFile is one generated file.
	ManifestFile struct {
		Path string `toml:"path"`
		Kind Kind   `toml:"kind"`
	}

	// ManifestBackup pairs an edited file with its backup.
	ManifestBackup struct {
		Original string `toml:"original"`
		Backup   string `toml:"backup"`
	}
)

// NewManifest creates an empty manifest for r.
func NewManifest(r detect.Resolved) *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		Resolved: ResolvedRecord{
			Pool:        string(r.Pool),
			RootDataset: string(r.RootDataset),
			BootEnvRoot: string(r.BootEnvRoot),
			Bootloader:  string(r.Bootloader),
			ESP:         string(r.ESP),
		},
	}
}

// DefaultManifest describes the artifacts install writes by default. Uninstall
// falls back to it when the recorded manifest is missing.
func DefaultManifest(pacmanConf string, units []string) *Manifest {
	m := &Manifest{Version: ManifestVersion}
	m.AddFile(ConfigPath, KindConfig)
	m.AddFile(pacman.SnapshotHookPath(), KindHook)
	m.AddFile(pacman.SignHookPath(), KindHook)
	m.AddFile(BootEnvWrapperPath(), KindWrapper)
	m.AddFile(SignWrapperPath(), KindWrapper)
	m.AddDir(filepath.Dir(ConfigPath))
	m.AddDir(filepath.Dir(ManifestPath))
	if pacmanConf != "" {
		m.AddBackup(pacmanConf)
	}
	m.AddUnits(units...)
	return m
}

// AddFile records a generated file once.
func (m *Manifest) AddFile(path string, kind Kind) {
	for _, f := range m.Files {
		if f.Path == path {
			return
		}
	}
	m.Files = append(m.Files, ManifestFile{Path: path, Kind: kind})
}

// AddDir records a directory install created.
func (m *Manifest) AddDir(dir string) {
	if !slices.Contains(m.Dirs, dir) {
		m.Dirs = append(m.Dirs, dir)
	}
}

// AddBackup records that original was backed up.
func (m *Manifest) AddBackup(original string) {
	for _, b := range m.Backups {
		if b.Original == original {
			return
		}
	}
	m.Backups = append(m.Backups, ManifestBackup{Original: original, Backup: BackupPath(original)})
}

// AddUnits records enabled units.
func (m *Manifest) AddUnits(units ...string) {
	for _, u := range units {
		if !slices.Contains(m.Units, u) {
			m.Units = append(m.Units, u)
		}
	}
}

// AddPackages records installed packages.
func (m *Manifest) AddPackages(pkgs ...string) {
	for _, p := range pkgs {
		if !slices.Contains(m.Packages, p) {
			m.Packages = append(m.Packages, p)
		}
	}
}

// Merge folds prev into m, keeping prev's entries first. Re-running install
// must not forget directories or packages an earlier run recorded.
func (m *Manifest) Merge(prev *Manifest) {
	if prev == nil {
		return
	}
	files := m.Files
	m.Files = slices.Clone(prev.Files)
	for _, f := range files {
		m.AddFile(f.Path, f.Kind)
	}
	dirs := m.Dirs
	m.Dirs = slices.Clone(prev.Dirs)
	for _, d := range dirs {
		m.AddDir(d)
	}
	backups := m.Backups
	m.Backups = slices.Clone(prev.Backups)
	for _, b := range backups {
		m.AddBackup(b.Original)
	}
	units := m.Units
	m.Units = slices.Clone(prev.Units)
	m.AddUnits(units...)
	pkgs := m.Packages
	m.Packages = slices.Clone(prev.Packages)
	m.AddPackages(pkgs...)
	if m.KeyBackup == "" {
		m.KeyBackup = prev.KeyBackup
	}
}

// LoadManifest reads the manifest at path.
func LoadManifest(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if exists, _ := afero.Exists(fs, path); !exists {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Version > ManifestVersion {
		return nil, fmt.Errorf("manifest %s has version %d, this zfsbe understands up to %d", path, m.Version, ManifestVersion)
	}
	return &m, nil
}

// SaveManifest writes m to path, creating the parent directory.
func SaveManifest(fs afero.Fs, path string, m *Manifest) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, fileMode); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
