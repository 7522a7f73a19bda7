package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/notebook-eng/kernels/internal/sentinel"
)

// ErrEmptyPath is returned when a destination path is empty.
const ErrEmptyPath = sentinel.Error("destination path must not be empty")

// WriteFileAtomic writes data to path so that a concurrent reader never
// observes a partially written file. Data is written to a temporary file in
// the same directory as path, synced, and then renamed into place. On POSIX
// systems rename within a directory is atomic.
//
// The parent directory is created if missing. The final file carries the
// given mode; the temporary file is created with that mode up front so there
// is no window where the file is readable with broader permissions.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) (retErr error) {
	if path == "" {
		return ErrEmptyPath
	}
	if err := EnsureDirForFile(path); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-write-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write: %w", err)
	}

	// fsync before rename so a crash cannot leave the renamed file with
	// incomplete contents.
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to destination: %w", err)
	}
	return nil
}

// RemoveIfExists deletes path, treating a missing file as success. Deleting
// the same file twice is therefore a no-op on the second call.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
