package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/notebook-eng/kernels/internal/channels"
	"github.com/notebook-eng/kernels/internal/connfile"
	"github.com/notebook-eng/kernels/internal/netutil"
	"github.com/notebook-eng/kernels/internal/process"
	"github.com/notebook-eng/kernels/internal/sentinel"
	"github.com/notebook-eng/kernels/internal/specs"
)

// ErrSpawn is the category error for failures starting the kernel process.
const ErrSpawn = sentinel.Error("kernel spawn failed")

// ErrNoChannels is returned by Kernel.Channels when the kernel was launched
// without opening channels, or channel opening failed.
const ErrNoChannels = sentinel.Error("channels not opened")

// Config carries everything a Launcher needs. The zero value is not usable;
// build it through NewLauncher, which applies defaults.
type Config struct {
	// RuntimeDir is where connection files are written.
	RuntimeDir string
	// IP is the interface kernels bind their sockets to.
	IP string
	// Env entries override both the ambient environment and the spec's env
	// block.
	Env map[string]string
	// Stdout and Stderr receive the kernel's output. Nil discards, unless
	// LogDir is set, in which case nil streams are captured to files there.
	Stdout io.Writer
	Stderr io.Writer
	LogDir string
	// SkipChannels suppresses dialing the messaging channels after
	// spawning; Kernel.Channels then returns ErrNoChannels.
	SkipChannels bool
	// KeepConnectionFile leaves the connection file on disk when the kernel
	// exits. Port reservations are always released.
	KeepConnectionFile bool
	// Opener dials the channel set. Nil means the ZeroMQ default.
	Opener channels.Opener
	// Ports is the registry that guards concurrent launches against handing
	// out the same port twice.
	Ports *netutil.PortRegistry
	// StopTimeout bounds Shutdown's SIGTERM-then-SIGKILL sequence when the
	// caller does not pass an explicit timeout.
	StopTimeout time.Duration
	Logger      *slog.Logger
}

// Launcher turns kernel specs into running kernels. Safe for concurrent use:
// launches share only the port registry and the runtime directory namespace.
type Launcher struct {
	cfg Config
}

// NewLauncher creates a Launcher, filling config defaults: the ZeroMQ opener,
// a fresh port registry, process.DefaultStopTimeout, and slog.Default().
func NewLauncher(cfg Config) (*Launcher, error) {
	if cfg.RuntimeDir == "" {
		return nil, errors.New("launcher: runtime directory must not be empty")
	}
	if cfg.IP == "" {
		cfg.IP = "127.0.0.1"
	}
	if cfg.Opener == nil {
		cfg.Opener = &channels.ZMQOpener{}
	}
	if cfg.Ports == nil {
		cfg.Ports = netutil.NewPortRegistry(nil)
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = process.DefaultStopTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Launcher{cfg: cfg}, nil
}

// Launch starts a kernel process for the given spec and returns the running
// Kernel. The sequence is strictly ordered and retry-free; any failure before
// the process starts releases everything acquired so far.
//
// A channel-open failure is special: the kernel process is healthy and
// running, so Launch returns the Kernel alongside an error wrapping
// ErrChannelOpen and leaves the decision to terminate with the caller.
func (l *Launcher) Launch(ctx context.Context, spec specs.KernelSpec) (*Kernel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("launch: %w: spec name must not be empty", ErrSpawn)
	}
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("launch %s: %w: argv must not be empty", spec.Name, ErrSpawn)
	}

	log := l.cfg.Logger.With("kernel", spec.Name)

	ports, err := l.cfg.Ports.AllocatePorts(connfile.PortCount, l.cfg.IP)
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", spec.Name, err)
	}

	info, err := connfile.New(l.cfg.IP, ports)
	if err != nil {
		l.cfg.Ports.ReleaseAll(ports)
		return nil, fmt.Errorf("launch %s: %w", spec.Name, err)
	}
	connFile, err := info.Write(l.cfg.RuntimeDir)
	if err != nil {
		l.cfg.Ports.ReleaseAll(ports)
		return nil, fmt.Errorf("launch %s: %w", spec.Name, err)
	}

	argv := spec.ExpandArgv(connFile)
	env := mergeEnv(os.Environ(), spec.Env, l.cfg.Env)

	// The command deliberately has no context: the kernel outlives the
	// Launch call and is stopped through Shutdown, not ctx cancellation.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env

	proc := process.NewBaseProcess(spec.Name, log, l.cfg.StopTimeout)
	streams := process.IOConfig{Stdout: l.cfg.Stdout, Stderr: l.cfg.Stderr, LogDir: l.cfg.LogDir}
	if err := proc.SetupAndStart(cmd, streams); err != nil {
		if rmErr := connfile.Remove(connFile); rmErr != nil {
			log.Warn("removing connection file after failed spawn", "error", rmErr)
		}
		l.cfg.Ports.ReleaseAll(ports)
		return nil, fmt.Errorf("launch %s: %w: %w", spec.Name, ErrSpawn, err)
	}

	k := &Kernel{
		spec:        spec,
		info:        info,
		connFile:    connFile,
		proc:        &proc,
		ports:       ports,
		registry:    l.cfg.Ports,
		keepFile:    l.cfg.KeepConnectionFile,
		stopTimeout: l.cfg.StopTimeout,
		log:         log,
	}
	// The exit observer makes cleanup unconditional: whether the kernel is
	// shut down through Shutdown or dies on its own, ports are released and
	// the connection file is removed exactly once.
	proc.OnExit(func(error) { k.cleanup() })

	log.Info("kernel started", "pid", proc.PID(), "connection_file", connFile)

	if !l.cfg.SkipChannels {
		ch, err := l.cfg.Opener.Open(ctx, info, log)
		if err != nil {
			return k, fmt.Errorf("launch %s: %w", spec.Name, err)
		}
		k.setChannels(ch)
	}
	return k, nil
}
