// SPDX-License-Identifier: MPL-2.0

package artifacts

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// ErrNoBackup is returned by Restore when the backup file does not exist.
var ErrNoBackup = errors.New("no backup to restore")

type (
	// File is one generated file.
	File struct {
		Path    string
		Content []byte
		Mode    os.FileMode
		Kind    Kind
	}

	// Store writes and removes artifacts on a filesystem.
	Store struct {
		fs     afero.Fs
		logger *log.Logger
	}
)

// NewStore creates a Store over fs.
func NewStore(fs afero.Fs, logger *log.Logger) *Store {
	return &Store{fs: fs, logger: logger}
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs { return s.fs }

// Apply writes every file and records it, and any directory it had to
// create, in m.
func (s *Store) Apply(files []File, m *Manifest) error {
	for _, f := range files {
		created, err := s.mkdirAll(filepath.Dir(f.Path))
		if err != nil {
			return err
		}
		for _, d := range created {
			m.AddDir(d)
		}
		changed, err := s.WriteFile(f)
		if err != nil {
			return err
		}
		if changed {
			s.logger.Info("wrote", "path", f.Path)
		} else {
			s.logger.Debug("unchanged", "path", f.Path)
		}
		m.AddFile(f.Path, f.Kind)
	}
	return nil
}

// WriteFile writes f unless the file already holds the same bytes and mode.
// It reports whether anything changed.
func (s *Store) WriteFile(f File) (bool, error) {
	mode := f.Mode
	if mode == 0 {
		mode = fileMode
	}

	if existing, err := afero.ReadFile(s.fs, f.Path); err == nil && bytes.Equal(existing, f.Content) {
		info, statErr := s.fs.Stat(f.Path)
		if statErr == nil && info.Mode().Perm() == mode.Perm() {
			return false, nil
		}
	}

	if err := afero.WriteFile(s.fs, f.Path, f.Content, mode); err != nil {
		return false, fmt.Errorf("write %s: %w", f.Path, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := s.fs.Chmod(f.Path, mode); err != nil {
		return false, fmt.Errorf("chmod %s: %w", f.Path, err)
	}
	return true, nil
}

// mkdirAll creates dir and returns the directories that did not exist,
// outermost first.
func (s *Store) mkdirAll(dir string) ([]string, error) {
	var missing []string
	for d := filepath.Clean(dir); d != "/" && d != "."; d = filepath.Dir(d) {
		exists, err := afero.DirExists(s.fs, d)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", d, err)
		}
		if exists {
			break
		}
		missing = append(missing, d)
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if err := s.fs.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	slices.Reverse(missing)
	return missing, nil
}

// Backup copies path to its backup location unless a backup already exists.
// It reports whether a backup was written.
func (s *Store) Backup(path string) (bool, error) {
	backup := BackupPath(path)
	if exists, err := afero.Exists(s.fs, backup); err != nil {
		return false, fmt.Errorf("stat %s: %w", backup, err)
	} else if exists {
		s.logger.Debug("backup already present", "path", backup)
		return false, nil
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	mode := os.FileMode(fileMode)
	if info, err := s.fs.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := afero.WriteFile(s.fs, backup, data, mode); err != nil {
		return false, fmt.Errorf("write backup %s: %w", backup, err)
	}
	s.logger.Info("backed up", "path", path, "backup", backup)
	return true, nil
}

// Restore copies the backup of path back over it and deletes the backup.
func (s *Store) Restore(path string) error {
	backup := BackupPath(path)
	data, err := afero.ReadFile(s.fs, backup)
	if err != nil {
		if exists, _ := afero.Exists(s.fs, backup); !exists {
			return fmt.Errorf("%w: %s", ErrNoBackup, backup)
		}
		return fmt.Errorf("read backup %s: %w", backup, err)
	}

	mode := os.FileMode(fileMode)
	if info, err := s.fs.Stat(backup); err == nil {
		mode = info.Mode().Perm()
	}
	if err := afero.WriteFile(s.fs, path, data, mode); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	if err := s.fs.Remove(backup); err != nil {
		return fmt.Errorf("remove backup %s: %w", backup, err)
	}
	s.logger.Info("restored", "path", path)
	return nil
}

// Edit applies fn to the content of path. When fn reports a change the file
// is backed up first and then rewritten. Unchanged content is neither
// written nor backed up.
func (s *Store) Edit(path string, fn func([]byte) ([]byte, bool)) (bool, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	updated, changed := fn(data)
	if !changed {
		return false, nil
	}
	if _, err := s.Backup(path); err != nil {
		return false, err
	}
	info, err := s.fs.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := afero.WriteFile(s.fs, path, updated, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Info("updated", "path", path)
	return true, nil
}

// Remove deletes every recorded file and then every recorded directory that
// is empty, deepest first. Missing files are not an error.
func (s *Store) Remove(m *Manifest) error {
	var result *multierror.Error

	for _, f := range m.Files {
		if err := s.fs.Remove(f.Path); err != nil && !isNotExist(s.fs, f.Path) {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", f.Path, err))
			continue
		}
		s.logger.Debug("removed", "path", f.Path)
	}

	if err := s.PruneDirs(m.Dirs); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// PruneDirs removes every directory of dirs that is empty, deepest first.
// Directories that are missing or still hold files are left alone.
func (s *Store) PruneDirs(dirs []string) error {
	var result *multierror.Error

	dirs = slices.Clone(dirs)
	slices.SortFunc(dirs, func(a, b string) int {
		return strings.Count(b, "/") - strings.Count(a, "/")
	})
	for _, d := range dirs {
		entries, err := afero.ReadDir(s.fs, d)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := s.fs.Remove(d); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", d, err))
			continue
		}
		s.logger.Debug("removed", "path", d)
	}

	return result.ErrorOrNil()
}

// SaveManifest writes m to ManifestPath and records the directories it had
// to create, so uninstall removes them again.
func (s *Store) SaveManifest(m *Manifest) error {
	created, err := s.mkdirAll(filepath.Dir(ManifestPath))
	if err != nil {
		return err
	}
	for _, d := range created {
		m.AddDir(d)
	}
	return SaveManifest(s.fs, ManifestPath, m)
}

// ReadConfig parses the generated config at path.
func (s *Store) ReadConfig(path string) (map[string]string, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseConfig(path, data)
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

func isNotExist(fs afero.Fs, path string) bool {
	exists, err := afero.Exists(fs, path)
	return err == nil && !exists
}
