package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/notebook-eng/kernels/internal/channels"
	"github.com/notebook-eng/kernels/internal/connfile"
	"github.com/notebook-eng/kernels/internal/netutil"
	"github.com/notebook-eng/kernels/internal/process"
	"github.com/notebook-eng/kernels/internal/specs"
)

// interruptModeMessage marks kernels interrupted via an interrupt_request on
// the control channel rather than SIGINT.
const interruptModeMessage = "message"

// Kernel is a running kernel process together with its connection resources.
// Lifecycle methods (Shutdown, Interrupt) must not be called concurrently
// with each other; the observation methods (PID, Exited, Wait, OnExit,
// accessors) are safe from any goroutine.
type Kernel struct {
	spec     specs.KernelSpec
	info     *connfile.ConnectionInfo
	connFile string
	proc     *process.BaseProcess

	// chanMu guards channels: Shutdown clears the field while other
	// goroutines may be calling Channels.
	chanMu   sync.Mutex
	channels channels.Channels

	ports    []int
	registry *netutil.PortRegistry
	keepFile bool

	stopTimeout time.Duration
	log         *slog.Logger

	cleanupOnce sync.Once
}

// Spec returns the kernel spec this kernel was launched from.
func (k *Kernel) Spec() specs.KernelSpec { return k.spec }

// ConnectionInfo returns the connection descriptor shared with the kernel.
func (k *Kernel) ConnectionInfo() *connfile.ConnectionInfo {
	c := *k.info
	return &c
}

// ConnectionFile returns the absolute path of the connection file.
func (k *Kernel) ConnectionFile() string { return k.connFile }

// PID returns the kernel process id.
func (k *Kernel) PID() int { return k.proc.PID() }

// Channels returns the kernel's messaging channels, or ErrNoChannels when
// the kernel was launched without them or has been shut down.
func (k *Kernel) Channels() (channels.Channels, error) {
	k.chanMu.Lock()
	defer k.chanMu.Unlock()
	if k.channels == nil {
		return nil, ErrNoChannels
	}
	return k.channels, nil
}

// setChannels publishes the channel set. Called once, during launch.
func (k *Kernel) setChannels(ch channels.Channels) {
	k.chanMu.Lock()
	k.channels = ch
	k.chanMu.Unlock()
}

// OnExit registers fn to run when the kernel process exits; fn receives the
// process's exit error (nil for a zero exit) and fires at most once per
// kernel lifetime. Registration after exit runs fn immediately.
func (k *Kernel) OnExit(fn func(error)) { k.proc.OnExit(fn) }

// Exited returns a channel closed when the kernel process exits.
func (k *Kernel) Exited() <-chan struct{} { return k.proc.Exited() }

// Wait blocks until the kernel process exits and returns its exit error.
func (k *Kernel) Wait() error { return k.proc.Wait() }

// readinessPollInterval is the delay between heartbeat-port probes in
// WaitReady.
const readinessPollInterval = 200 * time.Millisecond

// WaitReady polls until the kernel has bound its heartbeat port, the kernel
// process exits, or the timeout elapses. A zero timeout polls until ctx is
// done. Channel opening already tolerates a slow-binding kernel; WaitReady
// is for callers that skipped channels but still need to know the kernel is
// accepting connections before handing out the connection file.
func (k *Kernel) WaitReady(ctx context.Context, timeout time.Duration) error {
	addr := net.JoinHostPort(k.info.IP, strconv.Itoa(k.info.HBPort))
	return process.WaitReady(ctx, process.WaitReadyConfig{
		Interval:      readinessPollInterval,
		Timeout:       timeout,
		Name:          k.spec.Name,
		Port:          k.info.HBPort,
		Logger:        k.log,
		ProcessExited: k.proc.Exited(),
	}, func(pollCtx context.Context, _ int) (bool, error) {
		d := net.Dialer{}
		conn, err := d.DialContext(pollCtx, "tcp", addr)
		if err != nil {
			return false, nil
		}
		_ = conn.Close()
		return true, nil
	})
}

// Interrupt interrupts the kernel's current work. Kernels declaring
// interrupt_mode "message" get an interrupt_request on the control channel;
// all others get SIGINT.
func (k *Kernel) Interrupt(ctx context.Context) error {
	if k.spec.InterruptMode == interruptModeMessage {
		ch, err := k.Channels()
		if err != nil {
			return fmt.Errorf("interrupt %s: %w", k.spec.Name, err)
		}
		return ch.InterruptRequest(ctx)
	}
	if err := k.proc.Signal(syscall.SIGINT); err != nil {
		return fmt.Errorf("interrupt %s: %w", k.spec.Name, err)
	}
	return nil
}

// Shutdown closes the channels and stops the kernel process with the
// SIGTERM-then-SIGKILL sequence, bounded by timeout (zero means the
// launcher's stop timeout). Cleanup of ports and the connection file runs
// through the exit observer. Safe to call on an already exited kernel.
func (k *Kernel) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = k.stopTimeout
	}

	k.chanMu.Lock()
	ch := k.channels
	k.channels = nil
	k.chanMu.Unlock()

	var errs []error
	if ch != nil {
		if err := ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channels: %w", err))
		}
	}
	if err := k.proc.Stop(timeout); err != nil {
		errs = append(errs, err)
	}
	k.proc.Close()
	// Normally the exit observer has already run by the time Stop returns;
	// this covers the path where the process never got far enough to be
	// waited on.
	k.cleanup()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown %s: %w", k.spec.Name, errors.Join(errs...))
	}
	k.log.Info("kernel stopped")
	return nil
}

// cleanup releases the port reservations and removes the connection file.
// It runs exactly once regardless of how many paths reach it (exit observer,
// Shutdown, failed launch).
func (k *Kernel) cleanup() {
	k.cleanupOnce.Do(func() {
		k.registry.ReleaseAll(k.ports)
		if k.keepFile {
			return
		}
		if err := connfile.Remove(k.connFile); err != nil {
			// Deletion failures other than "already gone" are logged, not
			// raised: the kernel itself terminated fine.
			k.log.Warn("removing connection file", "path", k.connFile, "error", err)
		}
	})
}
