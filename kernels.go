package kernels

import (
	"context"
	"fmt"

	"github.com/notebook-eng/kernels/internal/launch"
	"github.com/notebook-eng/kernels/internal/netutil"
	"github.com/notebook-eng/kernels/internal/runtimedir"
	"github.com/notebook-eng/kernels/internal/specs"
)

// Registry discovers installed kernel specs on a search path. Registries are
// explicit values; there is no process-global one. Safe for concurrent use.
type Registry struct {
	inner *specs.Registry
}

// NewRegistry creates a Registry over the platform's default search path,
// unless WithSearchPaths overrides it. The first FindAll or Find scans the
// path and caches the result; Refresh rescans.
func NewRegistry(opts ...RegistryOption) *Registry {
	var cfg registryConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{inner: specs.NewRegistry(cfg.paths, logger())}
}

// SearchPaths returns the search path in precedence order.
func (r *Registry) SearchPaths() []string {
	return r.inner.SearchPaths()
}

// FindAll returns every discoverable kernel spec, keyed by kernel name.
// Malformed specs are skipped with a warning. The result is cached; call
// Refresh to pick up newly installed kernels.
func (r *Registry) FindAll(ctx context.Context) (map[string]KernelSpec, error) {
	return r.inner.FindAll(ctx)
}

// Refresh rescans the search path, replacing the cache.
func (r *Registry) Refresh(ctx context.Context) (map[string]KernelSpec, error) {
	return r.inner.Refresh(ctx)
}

// Find returns the spec for the named kernel. Names are case-insensitive.
// Returns an error wrapping ErrSpecNotFound when no such kernel exists.
func (r *Registry) Find(ctx context.Context, name string) (KernelSpec, error) {
	return r.inner.Find(ctx, name)
}

// launcherConfig is the assembled configuration behind a Launcher.
type launcherConfig struct {
	launch   launch.Config
	registry *Registry
}

// Launcher starts kernels. One Launcher can run any number of concurrent
// launches; they share a port registry so two kernels never receive the same
// port.
type Launcher struct {
	cfg launcherConfig
}

// NewLauncher creates a Launcher. Without options, connection files go to
// the platform runtime directory, kernels bind 127.0.0.1, output is
// discarded, channels are opened over ZeroMQ, and kernel names resolve
// through a default Registry.
func NewLauncher(opts ...Option) (*Launcher, error) {
	var cfg launcherConfig
	cfg.launch.Ports = netutil.NewPortRegistry(nil)
	cfg.launch.Logger = logger()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.launch.RuntimeDir == "" {
		dir, err := runtimedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("kernels: %w", err)
		}
		cfg.launch.RuntimeDir = dir
	}
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}
	// Validate the assembled config once, up front.
	if _, err := launch.NewLauncher(cfg.launch); err != nil {
		return nil, fmt.Errorf("kernels: %w", err)
	}
	return &Launcher{cfg: cfg}, nil
}

// Launch resolves name through the registry and starts that kernel. Options
// override the launcher's configuration for this launch only.
//
// When channel opening fails the returned error wraps ErrChannelOpen and the
// Kernel is returned non-nil with its process still running; the caller
// decides whether to Shutdown or retry channels another way.
func (l *Launcher) Launch(ctx context.Context, name string, opts ...Option) (*Kernel, error) {
	spec, err := l.cfg.registry.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	return l.LaunchSpec(ctx, spec, opts...)
}

// LaunchSpec starts a kernel from an explicit spec, bypassing the registry.
func (l *Launcher) LaunchSpec(ctx context.Context, spec KernelSpec, opts ...Option) (*Kernel, error) {
	cfg := l.cfg
	for _, opt := range opts {
		opt(&cfg)
	}
	inner, err := launch.NewLauncher(cfg.launch)
	if err != nil {
		return nil, fmt.Errorf("kernels: %w", err)
	}
	return inner.Launch(ctx, spec)
}

// RuntimeDir resolves the directory connection files are written to by
// default: JUPYTER_RUNTIME_DIR, the platform's per-user runtime location, or
// a uid-scoped temp directory.
func RuntimeDir() (string, error) {
	return runtimedir.Dir()
}

// SweepRuntimeDir removes connection files whose kernel no longer answers on
// its heartbeat port, returning the removed paths. An empty dir means the
// default runtime directory. Concurrent sweeps, including ones in other
// processes, serialize on a file lock; files younger than 30 seconds are
// never touched, protecting kernels still starting up.
func SweepRuntimeDir(ctx context.Context, dir string) ([]string, error) {
	if dir == "" {
		var err error
		dir, err = runtimedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("kernels: %w", err)
		}
	}
	return runtimedir.Sweep(ctx, runtimedir.SweepConfig{Dir: dir, Logger: logger()})
}
