package runtimedir

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Dir resolves the runtime directory for connection files, highest
// precedence first: the JUPYTER_RUNTIME_DIR environment variable, the
// platform's per-user runtime location, and finally a uid-scoped directory
// under the system temp dir. Dir only resolves the path; callers create it.
func Dir() (string, error) {
	if env := os.Getenv("JUPYTER_RUNTIME_DIR"); env != "" {
		return env, nil
	}

	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve runtime dir: %w", err)
		}
		return filepath.Join(home, "Library", "Jupyter", "runtime"), nil
	}

	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "jupyter"), nil
	}

	// The uid suffix keeps multi-user temp dirs from colliding; the
	// directory itself is created 0700 by the first writer.
	return filepath.Join(os.TempDir(), "jupyter-runtime-"+strconv.Itoa(os.Getuid())), nil
}
