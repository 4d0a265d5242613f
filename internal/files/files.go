// Package files handles locating candidate files, validating paths, and
// disposing of source files (standard or secure overwrite) around a
// pipeline run or restore, the way cmd/adapipe's interactive flow needs.
package files

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extension marks a container produced by a pipeline run.
const Extension = ".adapipe"

// Mode selects which direction the CLI is driving: producing a
// container (Process) or restoring one back to plaintext (Restore).
type Mode string

const (
	ModeProcess Mode = "Process"
	ModeRestore Mode = "Restore"
)

// DeleteOption selects how a source file is disposed of once its
// container (or restored plaintext) has been durably written.
type DeleteOption string

const (
	DeleteStandard DeleteOption = "Standard (fast)"
	DeleteSecure   DeleteOption = "Secure (overwrite before delete)"
)

// Finder walks the working directory tree for files eligible for the
// given Mode, skipping excluded directories and extensions.
type Finder struct {
	excludedDirs []string
	excludedExts []string
}

func NewFinder(excludedDirs, excludedExts []string) *Finder {
	return &Finder{excludedDirs: excludedDirs, excludedExts: excludedExts}
}

func (f *Finder) FindEligible(mode Mode) ([]string, error) {
	var found []string
	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if f.isEligible(path, info, mode) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

func (f *Finder) isEligible(path string, info os.FileInfo, mode Mode) bool {
	if info.IsDir() || strings.HasPrefix(info.Name(), ".") || f.shouldSkip(path) {
		return false
	}
	isContainer := strings.HasSuffix(path, Extension)
	return (mode == ModeProcess && !isContainer) || (mode == ModeRestore && isContainer)
}

func (f *Finder) shouldSkip(path string) bool {
	for _, dir := range f.excludedDirs {
		if strings.Contains(path, dir) {
			return true
		}
	}
	for _, ext := range f.excludedExts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Manager validates paths and disposes of files once the CLI is done
// with them.
type Manager struct {
	overwritePasses int
}

func NewManager(overwritePasses int) *Manager {
	if overwritePasses <= 0 {
		overwritePasses = 3
	}
	return &Manager{overwritePasses: overwritePasses}
}

// ValidatePath checks a path for the existence precondition the caller
// expects: mustExist requires a non-empty existing file, !mustExist
// requires the path to be free.
func (m *Manager) ValidatePath(path string, mustExist bool) error {
	info, err := os.Stat(path)
	if mustExist {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
		if err != nil {
			return fmt.Errorf("error accessing file: %w", err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("file is empty: %s", path)
		}
		return nil
	}
	if err == nil {
		return fmt.Errorf("file already exists: %s", path)
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("error accessing file: %w", err)
	}
	return nil
}

// Remove deletes path using the chosen DeleteOption.
func (m *Manager) Remove(path string, option DeleteOption) error {
	switch option {
	case DeleteStandard:
		return os.Remove(path)
	case DeleteSecure:
		return secureDelete(path, m.overwritePasses)
	default:
		return fmt.Errorf("unsupported delete option: %s", option)
	}
}

func secureDelete(path string, passes int) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open for secure deletion: %w", err)
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat before secure deletion: %w", err)
	}

	for pass := range passes {
		if err := randomOverwrite(file, info.Size()); err != nil {
			return fmt.Errorf("secure overwrite pass %d failed: %w", pass+1, err)
		}
	}
	return os.Remove(path)
}

func randomOverwrite(file *os.File, size int64) error {
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek to file start: %w", err)
	}

	buf := make([]byte, 4096)
	remaining := size
	for remaining > 0 {
		n := min(remaining, int64(len(buf)))
		if _, err := rand.Read(buf[:n]); err != nil {
			return fmt.Errorf("generate random data: %w", err)
		}
		if _, err := file.Write(buf[:n]); err != nil {
			return fmt.Errorf("write random data: %w", err)
		}
		remaining -= n
	}
	return file.Sync()
}
