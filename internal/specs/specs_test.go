package specs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeSpec creates dir/name/kernel.json with the given contents and returns
// the resource directory.
func writeSpec(t *testing.T, dir, name, contents string) string {
	t.Helper()
	resourceDir := filepath.Join(dir, name)
	if err := os.MkdirAll(resourceDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(resourceDir, "kernel.json"), []byte(contents), 0o644); err != nil {
		t.Fatalf("write kernel.json: %v", err)
	}
	return resourceDir
}

const pythonSpec = `{
  "argv": ["python3", "-m", "ipykernel_launcher", "-f", "{connection_file}"],
  "display_name": "Python 3",
  "language": "python",
  "env": {"PYTHONUNBUFFERED": "1"}
}`

func TestRegistry_FindAll(t *testing.T) {
	t.Parallel()

	t.Run("discovers specs", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeSpec(t, dir, "python3", pythonSpec)
		writeSpec(t, dir, "ir", `{"argv":["R","--slave","-f","{connection_file}"],"display_name":"R","language":"R"}`)

		r := NewRegistry([]string{dir}, nil)
		all, err := r.FindAll(context.Background())
		if err != nil {
			t.Fatalf("FindAll() error: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("got %d specs, want 2", len(all))
		}
		spec := all["python3"]
		if spec.DisplayName != "Python 3" {
			t.Errorf("DisplayName = %q", spec.DisplayName)
		}
		if spec.Language != "python" {
			t.Errorf("Language = %q", spec.Language)
		}
		if spec.Env["PYTHONUNBUFFERED"] != "1" {
			t.Errorf("Env = %v", spec.Env)
		}
		if spec.ResourceDir != filepath.Join(dir, "python3") {
			t.Errorf("ResourceDir = %q", spec.ResourceDir)
		}
	})

	t.Run("malformed spec skipped, scan continues", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeSpec(t, dir, "broken", "{not json")
		writeSpec(t, dir, "noargv", `{"display_name":"empty"}`)
		writeSpec(t, dir, "good", pythonSpec)

		r := NewRegistry([]string{dir}, nil)
		all, err := r.FindAll(context.Background())
		if err != nil {
			t.Fatalf("FindAll() error: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("got %d specs, want only the good one", len(all))
		}
		if _, ok := all["good"]; !ok {
			t.Error("good spec missing")
		}
	})

	t.Run("missing search path is not an error", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry([]string{filepath.Join(t.TempDir(), "does-not-exist")}, nil)
		all, err := r.FindAll(context.Background())
		if err != nil {
			t.Fatalf("FindAll() error: %v", err)
		}
		if len(all) != 0 {
			t.Errorf("got %d specs, want 0", len(all))
		}
	})

	t.Run("earlier path shadows later", func(t *testing.T) {
		t.Parallel()
		first := t.TempDir()
		second := t.TempDir()
		writeSpec(t, first, "python3", `{"argv":["first"],"display_name":"First","language":"python"}`)
		writeSpec(t, second, "python3", `{"argv":["second"],"display_name":"Second","language":"python"}`)

		r := NewRegistry([]string{first, second}, nil)
		all, err := r.FindAll(context.Background())
		if err != nil {
			t.Fatalf("FindAll() error: %v", err)
		}
		if all["python3"].DisplayName != "First" {
			t.Errorf("expected earlier path to win, got %q", all["python3"].DisplayName)
		}
	})

	t.Run("cached between calls", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeSpec(t, dir, "python3", pythonSpec)

		r := NewRegistry([]string{dir}, nil)
		if _, err := r.FindAll(context.Background()); err != nil {
			t.Fatalf("first FindAll(): %v", err)
		}

		// A spec added after the first scan is invisible until Refresh.
		writeSpec(t, dir, "late", pythonSpec)
		all, err := r.FindAll(context.Background())
		if err != nil {
			t.Fatalf("second FindAll(): %v", err)
		}
		if _, ok := all["late"]; ok {
			t.Error("cache should not see specs added after the scan")
		}

		refreshed, err := r.Refresh(context.Background())
		if err != nil {
			t.Fatalf("Refresh(): %v", err)
		}
		if _, ok := refreshed["late"]; !ok {
			t.Error("Refresh should pick up the new spec")
		}
	})
}

func TestRegistry_Find(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSpec(t, dir, "python3", pythonSpec)
	r := NewRegistry([]string{dir}, nil)

	t.Run("present", func(t *testing.T) {
		t.Parallel()
		spec, err := r.Find(context.Background(), "python3")
		if err != nil {
			t.Fatalf("Find() error: %v", err)
		}
		if spec.Name != "python3" {
			t.Errorf("Name = %q", spec.Name)
		}
	})

	t.Run("case-insensitive lookup", func(t *testing.T) {
		t.Parallel()
		if _, err := r.Find(context.Background(), "Python3"); err != nil {
			t.Errorf("Find() with mixed case: %v", err)
		}
	})

	t.Run("absent name is ErrSpecNotFound", func(t *testing.T) {
		t.Parallel()
		_, err := r.Find(context.Background(), "julia")
		if !errors.Is(err, ErrSpecNotFound) {
			t.Fatalf("error = %v, want ErrSpecNotFound", err)
		}
		// The message must name the missing kernel.
		if got := err.Error(); !strings.Contains(got, "julia") {
			t.Errorf("error %q does not name the missing kernel", got)
		}
	})
}

func TestKernelSpec_ExpandArgv(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		argv []string
		want []string
	}{
		"single placeholder": {
			argv: []string{"python3", "-m", "ipykernel_launcher", "-f", "{connection_file}"},
			want: []string{"python3", "-m", "ipykernel_launcher", "-f", "/run/kernel-1.json"},
		},
		"placeholder repeated": {
			argv: []string{"run", "{connection_file}", "{connection_file}"},
			want: []string{"run", "/run/kernel-1.json", "/run/kernel-1.json"},
		},
		"no placeholder": {
			argv: []string{"bash", "-c", "echo hi"},
			want: []string{"bash", "-c", "echo hi"},
		},
		"partial token is not a placeholder": {
			argv: []string{"--file={connection_file}"},
			want: []string{"--file={connection_file}"},
		},
		"resource dir placeholder": {
			argv: []string{"run", "{resource_dir}", "-f", "{connection_file}"},
			want: []string{"run", "/opt/kernels/py", "-f", "/run/kernel-1.json"},
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			spec := KernelSpec{Argv: tc.argv, ResourceDir: "/opt/kernels/py"}
			got := spec.ExpandArgv("/run/kernel-1.json")
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("argv[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
			// The original must be untouched.
			if tc.argv[len(tc.argv)-1] != spec.Argv[len(spec.Argv)-1] {
				t.Error("ExpandArgv modified the spec's argv")
			}
		})
	}
}
