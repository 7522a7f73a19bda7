package specs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/notebook-eng/kernels/internal/sentinel"
)

// ErrSpecNotFound is returned by Find when the requested kernel name is
// absent from the discovered set.
const ErrSpecNotFound = sentinel.Error("kernel spec not found")

// specFileName is the declarative launch description every kernel directory
// must contain.
const specFileName = "kernel.json"

// ConnectionFilePlaceholder is the argv token replaced verbatim with the
// connection file's absolute path at launch time.
const ConnectionFilePlaceholder = "{connection_file}"

// ResourceDirPlaceholder is the argv token replaced with the kernel spec's
// resource directory at launch time.
const ResourceDirPlaceholder = "{resource_dir}"

// KernelSpec describes how to launch one kernel implementation. Immutable
// once loaded; the registry hands out copies, never cache-backed pointers.
type KernelSpec struct {
	// Name is the kernel's registry key, derived from its directory name.
	Name string `json:"-"`
	// ResourceDir is the directory the spec was loaded from.
	ResourceDir string `json:"-"`

	Argv          []string          `json:"argv"`
	DisplayName   string            `json:"display_name"`
	Language      string            `json:"language"`
	InterruptMode string            `json:"interrupt_mode,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

// validate checks the fields a usable spec must carry.
func (s KernelSpec) validate() error {
	if len(s.Argv) == 0 {
		return errors.New("argv must not be empty")
	}
	return nil
}

// ExpandArgv returns argv with every token that is exactly the connection
// file placeholder replaced by connectionFile, and every resource directory
// placeholder replaced by the spec's resource dir. All other tokens pass
// through unchanged, preserving order. The input slice is not modified.
func (s KernelSpec) ExpandArgv(connectionFile string) []string {
	out := make([]string, len(s.Argv))
	for i, tok := range s.Argv {
		switch tok {
		case ConnectionFilePlaceholder:
			out[i] = connectionFile
		case ResourceDirPlaceholder:
			out[i] = s.ResourceDir
		default:
			out[i] = tok
		}
	}
	return out
}

// Registry discovers and caches kernel specs from a search path. It holds its
// own cache and is passed by reference to callers that need it; there is no
// process-wide registry.
type Registry struct {
	paths []string
	log   *slog.Logger

	mu    sync.Mutex
	cache map[string]KernelSpec // nil until the first scan
}

// NewRegistry creates a Registry over the given search paths. If paths is
// empty, DefaultSearchPaths() is used. If logger is nil, slog.Default() is
// used.
func NewRegistry(paths []string, logger *slog.Logger) *Registry {
	if len(paths) == 0 {
		paths = DefaultSearchPaths()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{paths: paths, log: logger}
}

// SearchPaths returns the registry's search paths. The returned slice is a
// copy.
func (r *Registry) SearchPaths() []string {
	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}

// FindAll returns a mapping from kernel name to KernelSpec, scanning the
// search paths on first use and serving the cache afterwards. The returned
// map is a copy; callers may modify it freely.
func (r *Registry) FindAll(ctx context.Context) (map[string]KernelSpec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		specs, err := r.scan(ctx)
		if err != nil {
			return nil, err
		}
		r.cache = specs
	}
	return copySpecs(r.cache), nil
}

// Refresh rescans the search paths, replaces the cache, and returns the new
// mapping.
func (r *Registry) Refresh(ctx context.Context) (map[string]KernelSpec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	specs, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	r.cache = specs
	return copySpecs(specs), nil
}

// Find returns the spec for name. Kernel names are case-insensitive; the
// lookup key is the lowercased name. Returns an error wrapping
// [ErrSpecNotFound] naming the missing kernel when absent.
func (r *Registry) Find(ctx context.Context, name string) (KernelSpec, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return KernelSpec{}, err
	}
	spec, ok := all[strings.ToLower(name)]
	if !ok {
		return KernelSpec{}, fmt.Errorf("%w: no kernel named %q in %d search paths", ErrSpecNotFound, name, len(r.paths))
	}
	return spec, nil
}

// scan walks every search path and loads each kernel directory's spec.
// Earlier paths take precedence: a kernel name found in an earlier path
// shadows the same name in a later one. Individual malformed entries are
// skipped with a warning rather than aborting the whole scan.
func (r *Registry) scan(ctx context.Context) (map[string]KernelSpec, error) {
	specs := make(map[string]KernelSpec)
	for _, dir := range r.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				r.log.Warn("skipping unreadable kernel search path", "path", dir, "error", err)
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := strings.ToLower(entry.Name())
			if _, ok := specs[name]; ok {
				continue // shadowed by an earlier path
			}
			resourceDir := filepath.Join(dir, entry.Name())
			spec, err := loadSpec(name, resourceDir)
			if err != nil {
				r.log.Warn("skipping malformed kernel spec", "name", name, "dir", resourceDir, "error", err)
				continue
			}
			specs[name] = spec
		}
	}
	return specs, nil
}

// loadSpec reads and validates a single kernel.json.
func loadSpec(name, resourceDir string) (KernelSpec, error) {
	data, err := os.ReadFile(filepath.Join(resourceDir, specFileName))
	if err != nil {
		return KernelSpec{}, fmt.Errorf("read %s: %w", specFileName, err)
	}
	var spec KernelSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return KernelSpec{}, fmt.Errorf("parse %s: %w", specFileName, err)
	}
	if err := spec.validate(); err != nil {
		return KernelSpec{}, err
	}
	spec.Name = name
	spec.ResourceDir = resourceDir
	return spec, nil
}

func copySpecs(in map[string]KernelSpec) map[string]KernelSpec {
	out := make(map[string]KernelSpec, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
