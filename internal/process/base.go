package process

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/notebook-eng/kernels/internal/sentinel"
)

// ErrAlreadyStarted is returned when Start is called on a process that is
// already running. Callers must Stop the process before starting it again.
const ErrAlreadyStarted = sentinel.Error("process already started")

// ErrNilCmd is returned when SetupAndStart is called with a nil *exec.Cmd.
const ErrNilCmd = sentinel.Error("cmd must not be nil")

// ErrEmptyCmdPath is returned when SetupAndStart is called with an empty cmd.Path.
const ErrEmptyCmdPath = sentinel.Error("cmd.Path must not be empty")

// ErrNotStarted is returned by methods that need a running process.
const ErrNotStarted = sentinel.Error("process not started")

// IOConfig controls where the child's standard streams go. The zero value
// discards both streams, which is the default disposition for launched
// kernels.
type IOConfig struct {
	Stdout io.Writer // nil discards unless LogDir is set
	Stderr io.Writer // nil discards unless LogDir is set
	LogDir string    // when set, nil streams are captured to <name>-stdout.log / <name>-stderr.log
}

// BaseProcess provides common child-process lifecycle management: a single
// cmd.Wait goroutine, an exit broadcast channel, SIGTERM-then-SIGKILL stop,
// and at-most-once exit observers.
//
// BaseProcess is not safe for concurrent use of its lifecycle methods
// (SetupAndStart, Stop, Close); callers must serialize them. OnExit, Exited,
// PID, and Signal may be called from any goroutine.
type BaseProcess struct {
	cmd         *exec.Cmd
	waitDone    <-chan error    // receives cmd.Wait result; consumed once by Stop
	exited      <-chan struct{} // closed when the process exits; readable by any goroutine
	logFiles    LogFiles
	name        string
	log         *slog.Logger
	stopTimeout time.Duration // fallback timeout for auto-stop in Close

	// Exit observer state, guarded by obsMu. Observers fire at most once per
	// process lifetime, from the wait goroutine; observers registered after
	// exit fire immediately on the registering goroutine.
	obsMu     sync.Mutex
	observers []func(error)
	exitErr   error
	exitFired bool
}

// NewBaseProcess creates a BaseProcess with the given name, logger, and stop
// timeout. The stopTimeout is used by Close as a safety-net timeout when
// auto-stopping a process that was not explicitly stopped; zero falls back to
// DefaultStopTimeout. If logger is nil, slog.Default() is used. Panics if
// name is empty, since an empty name produces confusing error messages
// throughout the process lifecycle.
func NewBaseProcess(name string, logger *slog.Logger, stopTimeout time.Duration) BaseProcess {
	if name == "" {
		panic("kernels: process name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return BaseProcess{name: name, log: logger, stopTimeout: stopTimeout}
}

// SetupAndStart wires the child's streams, starts the command, and launches
// the single cmd.Wait goroutine. The cmd must already have its Path, Args,
// Env, and Dir set.
//
// cmd.Wait must be called exactly once per started process; starting the
// goroutine here guarantees that invariant and provides the done channel
// consumed by Stop. A spawn failure (missing executable, permission denied)
// is returned directly from this call; no observer fires for it.
func (b *BaseProcess) SetupAndStart(cmd *exec.Cmd, streams IOConfig) error {
	if cmd == nil {
		return ErrNilCmd
	}
	if cmd.Path == "" {
		return ErrEmptyCmdPath
	}
	if b.cmd != nil {
		return ErrAlreadyStarted
	}

	configureSysProcAttr(cmd)

	if streams.LogDir != "" && (streams.Stdout == nil || streams.Stderr == nil) {
		logFiles, err := NewLogFiles(streams.LogDir, b.name)
		if err != nil {
			return fmt.Errorf("create %s logs: %w", b.name, err)
		}
		b.logFiles = logFiles
		if streams.Stdout == nil {
			streams.Stdout = logFiles.stdoutFile
		}
		if streams.Stderr == nil {
			streams.Stderr = logFiles.stderrFile
		}
	}
	// nil writers leave cmd.Stdout/Stderr nil, which os/exec wires to the
	// null device.
	cmd.Stdout = streams.Stdout
	cmd.Stderr = streams.Stderr

	if err := cmd.Start(); err != nil {
		b.logFiles.Close()
		b.logFiles = LogFiles{}
		return fmt.Errorf("start %s process: %w", b.name, err)
	}
	b.cmd = cmd

	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		done <- err
		// Observers run before the exit broadcast so anyone unblocked by
		// Exited or Wait sees cleanup already done and the exit error
		// recorded.
		b.fireExit(err)
		close(exited)
	}()
	b.waitDone = done
	b.exited = exited

	return nil
}

// OnExit registers fn to run when the process exits, with the error returned
// by cmd.Wait (nil for a zero exit). Each registered function fires at most
// once per process lifetime. If the process has already exited, fn runs
// immediately on the calling goroutine.
func (b *BaseProcess) OnExit(fn func(error)) {
	b.obsMu.Lock()
	if b.exitFired {
		err := b.exitErr
		b.obsMu.Unlock()
		fn(err)
		return
	}
	b.observers = append(b.observers, fn)
	b.obsMu.Unlock()
}

// fireExit runs every registered observer exactly once and records the exit
// error for late registrations.
func (b *BaseProcess) fireExit(err error) {
	b.obsMu.Lock()
	if b.exitFired {
		b.obsMu.Unlock()
		return
	}
	b.exitFired = true
	b.exitErr = err
	observers := b.observers
	b.observers = nil
	b.obsMu.Unlock()

	for _, fn := range observers {
		fn(err)
	}
}

// Exited returns a channel that is closed when the process exits. It is safe
// to select on from any number of goroutines, and remains valid after Stop:
// a stopped process's channel is (or is about to be) closed. Returns nil only
// if the process was never started.
func (b *BaseProcess) Exited() <-chan struct{} {
	return b.exited
}

// IsStarted reports whether the process has been started and not yet stopped.
func (b *BaseProcess) IsStarted() bool {
	return b.cmd != nil
}

// PID returns the child's process id, or 0 if not started.
func (b *BaseProcess) PID() int {
	if b.cmd == nil || b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

// Signal delivers sig to the running process.
func (b *BaseProcess) Signal(sig os.Signal) error {
	if b.cmd == nil || b.cmd.Process == nil {
		return ErrNotStarted
	}
	return b.cmd.Process.Signal(sig)
}

// Wait blocks until the process exits and returns the cmd.Wait error.
// It must not be combined with Stop from another goroutine consuming the
// same result; in practice the owning Kernel serializes them.
func (b *BaseProcess) Wait() error {
	b.obsMu.Lock()
	if b.exitFired {
		err := b.exitErr
		b.obsMu.Unlock()
		return err
	}
	exited := b.exited
	b.obsMu.Unlock()
	if exited == nil {
		return ErrNotStarted
	}
	<-exited
	b.obsMu.Lock()
	defer b.obsMu.Unlock()
	return b.exitErr
}

// Stop terminates the process with the given timeout using the
// SIGTERM-then-SIGKILL sequence. After Stop returns, IsStarted reports false
// regardless of whether the stop succeeded. Safe to call when the process was
// never started or already stopped; returns nil immediately in those cases.
func (b *BaseProcess) Stop(timeout time.Duration) error {
	if b.cmd == nil || b.cmd.Process == nil {
		b.cmd = nil
		b.waitDone = nil
		return nil
	}
	pid := b.cmd.Process.Pid
	err := stopWithDone(b.cmd, b.waitDone, timeout, b.name)
	if err != nil {
		b.log.Warn("process stop failed; process may be orphaned",
			"process", b.name, "pid", pid, "error", err)
	}
	// exited is deliberately kept: the wait goroutine closes it, and Exited
	// and Wait callers may still be (or start) selecting on it after Stop.
	b.cmd = nil
	b.waitDone = nil
	return err
}

// Close closes log file handles. If the process is still running, Close logs
// a warning and stops it automatically to prevent resource leaks; callers
// should always call Stop first, the auto-stop is a safety net.
func (b *BaseProcess) Close() {
	if b.cmd != nil {
		b.log.Warn("process.Close called without Stop; stopping automatically",
			"process", b.name)
		timeout := b.stopTimeout
		if timeout <= 0 {
			timeout = DefaultStopTimeout
		}
		if err := b.Stop(timeout); err != nil {
			b.log.Warn("auto-stop during Close failed",
				"process", b.name, "error", err)
		}
	}
	b.logFiles.Close()
}

// Logger returns the logger used by this process.
func (b *BaseProcess) Logger() *slog.Logger {
	return b.log
}
