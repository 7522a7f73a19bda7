package kernels

import (
	"fmt"
	"io"
	"time"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("kernels: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("kernels: %s must not be empty", name))
	}
}

// RegistryOption configures a Registry during construction via NewRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	paths []string
}

// WithSearchPaths replaces the default kernel-spec search path. Paths are
// scanned in order; a kernel name found in an earlier path shadows the same
// name in a later one.
//
// Panics if paths is empty or contains an empty entry. These panics are
// intentional: option values are typically compile-time constants, so an
// invalid value indicates a programmer error rather than a runtime
// condition.
func WithSearchPaths(paths ...string) RegistryOption {
	if len(paths) == 0 {
		panic("kernels: search paths must not be empty")
	}
	for _, p := range paths {
		requireNonEmpty("search path", p)
	}
	return func(c *registryConfig) {
		c.paths = paths
	}
}

// Option configures a Launcher. Options passed to NewLauncher set the
// launcher's defaults; options passed to Launch or LaunchSpec override them
// for that launch only.
type Option func(*launcherConfig)

// WithRuntimeDir sets the directory connection files are written to,
// overriding the platform default (JUPYTER_RUNTIME_DIR, XDG runtime dir, or
// a temp directory).
//
// Panics if dir is empty.
func WithRuntimeDir(dir string) Option {
	requireNonEmpty("runtime directory", dir)
	return func(c *launcherConfig) {
		c.launch.RuntimeDir = dir
	}
}

// WithIP sets the interface address kernels bind their channel sockets to.
//
// Default: 127.0.0.1.
//
// Panics if ip is empty.
func WithIP(ip string) Option {
	requireNonEmpty("ip", ip)
	return func(c *launcherConfig) {
		c.launch.IP = ip
	}
}

// WithEnv sets environment overrides for launched kernels. These take
// precedence over both the ambient environment and the env block of the
// kernel spec.
func WithEnv(env map[string]string) Option {
	return func(c *launcherConfig) {
		c.launch.Env = env
	}
}

// WithStdout directs the kernel's stdout to w instead of discarding it.
func WithStdout(w io.Writer) Option {
	return func(c *launcherConfig) {
		c.launch.Stdout = w
	}
}

// WithStderr directs the kernel's stderr to w instead of discarding it.
func WithStderr(w io.Writer) Option {
	return func(c *launcherConfig) {
		c.launch.Stderr = w
	}
}

// WithLogDir captures kernel output to <kernel>-stdout.log and
// <kernel>-stderr.log files in dir. Streams set explicitly through
// WithStdout/WithStderr take precedence.
//
// Panics if dir is empty.
func WithLogDir(dir string) Option {
	requireNonEmpty("log directory", dir)
	return func(c *launcherConfig) {
		c.launch.LogDir = dir
	}
}

// WithoutChannels launches kernels without dialing their messaging
// channels; Kernel.Channels returns ErrNoChannels. Useful when another
// client (e.g. a front-end handed the connection file) owns the channels.
func WithoutChannels() Option {
	return func(c *launcherConfig) {
		c.launch.SkipChannels = true
	}
}

// WithoutConnectionFileCleanup leaves connection files on disk after the
// kernel exits, for post-mortem inspection or external lifecycle management.
// Port reservations are still released.
func WithoutConnectionFileCleanup() Option {
	return func(c *launcherConfig) {
		c.launch.KeepConnectionFile = true
	}
}

// WithChannelOpener replaces the default ZeroMQ channel opener.
//
// Panics if opener is nil.
func WithChannelOpener(opener ChannelOpener) Option {
	if opener == nil {
		panic("kernels: channel opener must not be nil")
	}
	return func(c *launcherConfig) {
		c.launch.Opener = opener
	}
}

// WithStopTimeout bounds Kernel.Shutdown's SIGTERM-then-SIGKILL sequence
// when no explicit timeout is passed.
//
// Default: 10 seconds.
//
// Panics if d <= 0.
func WithStopTimeout(d time.Duration) Option {
	requirePositive("stop timeout", d)
	return func(c *launcherConfig) {
		c.launch.StopTimeout = d
	}
}

// WithRegistry sets the Registry used by Launch to resolve kernel names.
//
// Panics if registry is nil.
func WithRegistry(registry *Registry) Option {
	if registry == nil {
		panic("kernels: registry must not be nil")
	}
	return func(c *launcherConfig) {
		c.registry = registry
	}
}
