package netutil

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/notebook-eng/kernels/internal/sentinel"
)

// maxPortRetries is the maximum number of attempts to find a port not already
// in the registry. This guards against pathological cases.
const maxPortRetries = 20

// ErrPortAllocation is the category error for port allocation failures.
// Every error returned by AllocatePorts wraps it, so callers can match the
// whole class with errors.Is regardless of the underlying cause.
const ErrPortAllocation = sentinel.Error("port allocation failed")

// PortRegistry tracks ports currently reserved by this process to prevent
// the TOCTOU race where two concurrent AllocatePorts calls receive the
// same port from the kernel (because the first caller closed its listener
// before the second caller opened theirs).
//
// A Launcher creates one PortRegistry and shares it across every kernel it
// launches; the registry is the only mutable state concurrent launches share.
type PortRegistry struct {
	mu    sync.Mutex
	ports map[int]struct{}
	log   *slog.Logger
}

// NewPortRegistry creates a new PortRegistry ready for use.
// If logger is nil, slog.Default() is used as a fallback.
func NewPortRegistry(logger *slog.Logger) *PortRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortRegistry{
		ports: make(map[int]struct{}),
		log:   logger,
	}
}

// reserve attempts to register a port in the registry.
// Returns true if the port was successfully reserved, false if already taken.
func (r *PortRegistry) reserve(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ports[port]; ok {
		return false
	}
	r.ports[port] = struct{}{}
	return true
}

// Release removes a port from the registry, allowing it to be reused.
func (r *PortRegistry) Release(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ports, port)
}

// ReleaseAll releases every port in the given slice. Zero entries are skipped
// so callers can pass partially populated slices from failed allocations.
func (r *PortRegistry) ReleaseAll(ports []int) {
	for _, p := range ports {
		if p != 0 {
			r.Release(p)
		}
	}
}

// getFreePortFromKernel asks the OS for a free port on host, skipping any
// ports already in the registry. On success it returns an open
// [net.TCPListener] that the caller must close when the port no longer needs
// to be held open. The port is also registered in the registry; the caller
// must call [PortRegistry.Release] separately to free it from the registry.
func (r *PortRegistry) getFreePortFromKernel(host string) (*net.TCPListener, int, error) {
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, 0, fmt.Errorf("resolve tcp address: %w", err)
	}

	for attempt := 0; attempt < maxPortRetries; attempt++ {
		l, err := net.ListenTCP("tcp", addr)
		if err != nil {
			return nil, 0, fmt.Errorf("listen on tcp address: %w", err)
		}
		tcpAddr, ok := l.Addr().(*net.TCPAddr)
		if !ok {
			_ = l.Close()
			return nil, 0, fmt.Errorf("unexpected address type: %T", l.Addr())
		}
		if r.reserve(tcpAddr.Port) {
			return l, tcpAddr.Port, nil
		}
		// Port already in registry, close and retry to get a different one.
		r.log.Debug("port already in registry, retrying", "port", tcpAddr.Port)
		_ = l.Close()
	}
	return nil, 0, fmt.Errorf("allocate unique port: exhausted %d attempts", maxPortRetries)
}

// AllocatePorts allocates count distinct free ports on host.
//
// All listeners are held open simultaneously before any is closed,
// guaranteeing the OS assigns distinct ports. Ports are registered in the
// registry to prevent duplicate allocation across concurrent callers. Callers
// must call Release (or ReleaseAll) for each port when no longer needed.
//
// The returned order is positional: callers assign channel roles by index and
// must not reorder the slice. Every error wraps [ErrPortAllocation].
//
// The gap between closing a listener and the launched kernel binding the same
// port is an accepted race: nothing holds the port at the OS level during
// that window, and another process may grab it. The registry only protects
// against collisions between launches within this process.
func (r *PortRegistry) AllocatePorts(count int, host string) (ports []int, retErr error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", ErrPortAllocation, count)
	}
	if host == "" {
		host = "127.0.0.1"
	}

	listeners := make([]*net.TCPListener, 0, count)
	ports = make([]int, 0, count)
	defer func() {
		// Close listeners before releasing registry entries, so a concurrent
		// caller cannot be handed a port the OS still considers bound.
		for i, l := range listeners {
			if err := l.Close(); err != nil {
				r.log.Warn("close listener after port allocation", "port", ports[i], "error", err)
			}
		}
		if retErr != nil {
			r.ReleaseAll(ports)
			ports = nil
		}
	}()

	for i := 0; i < count; i++ {
		l, p, err := r.getFreePortFromKernel(host)
		if err != nil {
			return nil, fmt.Errorf("%w: allocate port %d of %d: %w", ErrPortAllocation, i+1, count, err)
		}
		listeners = append(listeners, l)
		ports = append(ports, p)
	}
	return ports, nil
}
