package specs

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultSearchPaths returns the kernel-spec search path for this platform,
// highest precedence first: the JUPYTER_PATH environment variable (each entry
// with "kernels" appended), the per-user data directory, then the system-wide
// directories.
func DefaultSearchPaths() []string {
	var paths []string

	if env := os.Getenv("JUPYTER_PATH"); env != "" {
		for _, p := range filepath.SplitList(env) {
			if p != "" {
				paths = append(paths, filepath.Join(p, "kernels"))
			}
		}
	}

	if user := userKernelDir(); user != "" {
		paths = append(paths, user)
	}

	paths = append(paths,
		filepath.Join("/usr", "local", "share", "jupyter", "kernels"),
		filepath.Join("/usr", "share", "jupyter", "kernels"),
	)
	return paths
}

// userKernelDir resolves the per-user kernel directory, or "" when the home
// directory cannot be determined.
func userKernelDir() string {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, "Library", "Jupyter", "kernels")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "jupyter", "kernels")
}
