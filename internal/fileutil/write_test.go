package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	t.Run("writes contents", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "out.json")
		if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0o600); err != nil {
			t.Fatalf("WriteFileAtomic() error: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		if string(got) != `{"a":1}` {
			t.Errorf("contents = %q, want %q", got, `{"a":1}`)
		}
	})

	t.Run("sets mode", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "secret")
		if err := WriteFileAtomic(path, []byte("key"), 0o600); err != nil {
			t.Fatalf("WriteFileAtomic() error: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("mode = %o, want %o", perm, 0o600)
		}
	})

	t.Run("creates parent directory", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "deeper", "out")
		if err := WriteFileAtomic(path, []byte("x"), 0o600); err != nil {
			t.Fatalf("WriteFileAtomic() error: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected file to exist: %v", err)
		}
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "out")
		if err := WriteFileAtomic(path, []byte("first"), 0o600); err != nil {
			t.Fatalf("first write: %v", err)
		}
		if err := WriteFileAtomic(path, []byte("second"), 0o600); err != nil {
			t.Fatalf("second write: %v", err)
		}
		got, _ := os.ReadFile(path)
		if string(got) != "second" {
			t.Errorf("contents = %q, want %q", got, "second")
		}
	})

	t.Run("empty path rejected", func(t *testing.T) {
		t.Parallel()
		if err := WriteFileAtomic("", []byte("x"), 0o600); err != ErrEmptyPath {
			t.Errorf("error = %v, want %v", err, ErrEmptyPath)
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		if err := WriteFileAtomic(filepath.Join(dir, "out"), []byte("x"), 0o600); err != nil {
			t.Fatalf("WriteFileAtomic() error: %v", err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("read dir: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected exactly 1 entry, got %d", len(entries))
		}
	})
}

func TestRemoveIfExists(t *testing.T) {
	t.Parallel()

	t.Run("removes existing file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "gone")
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatalf("setup: %v", err)
		}
		if err := RemoveIfExists(path); err != nil {
			t.Fatalf("RemoveIfExists() error: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("file should be gone")
		}
	})

	t.Run("missing file is a no-op", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "never-existed")
		if err := RemoveIfExists(path); err != nil {
			t.Fatalf("RemoveIfExists() on missing file: %v", err)
		}
		// Second call must also succeed.
		if err := RemoveIfExists(path); err != nil {
			t.Fatalf("second RemoveIfExists(): %v", err)
		}
	})
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	t.Run("creates nested directories", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "a", "b", "c")
		if err := EnsureDir(dir); err != nil {
			t.Fatalf("EnsureDir() error: %v", err)
		}
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected a directory")
		}
	})

	t.Run("existing directory is not an error", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		if err := EnsureDir(dir); err != nil {
			t.Fatalf("EnsureDir() on existing dir: %v", err)
		}
	})
}
