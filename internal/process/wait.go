package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Sentinel errors returned by WaitReady for invalid configuration and
// process lifecycle conditions. Callers can match these with errors.Is
// through wrapped error chains.
var (
	// ErrIntervalNotPositive indicates a non-positive poll interval.
	ErrIntervalNotPositive = errors.New("interval must be positive")

	// ErrProcessExited indicates the process exited before becoming ready.
	ErrProcessExited = errors.New("process exited before becoming ready")
)

// ReadinessCheck is a function that checks if a process is ready.
// The context is canceled when the polling loop times out or the caller
// cancels, allowing checks (e.g., TCP dials) to exit promptly.
// The attempt parameter is 1-based (first call receives attempt=1).
// It returns true when ready, false to continue polling.
// The error return is for fatal errors that should abort polling.
type ReadinessCheck func(ctx context.Context, attempt int) (ready bool, err error)

// WaitReadyConfig configures the wait behavior.
type WaitReadyConfig struct {
	Interval time.Duration // Poll interval
	// Timeout bounds the whole poll. Zero means no internal deadline: the
	// poll runs until ready or until ctx is canceled, which is how channel
	// opening behaves (callers impose their own deadline via ctx).
	Timeout       time.Duration
	Name          string          // For logging (e.g., kernel name)
	Port          int             // For logging context
	Logger        *slog.Logger    // Optional logger (defaults to slog.Default())
	ProcessExited <-chan struct{} // If non-nil, abort immediately when closed (process died)
}

// WaitReady polls until the check function returns true, the check returns a
// fatal error, the process exits, or the context/timeout expires.
func WaitReady(ctx context.Context, cfg WaitReadyConfig, check ReadinessCheck) error {
	if cfg.Name == "" {
		return errors.New("wait ready: name must not be empty")
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrIntervalNotPositive)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// attempt is safe to increment without synchronization because the poll
	// helpers invoke the condition function sequentially: each call
	// completes before the next is scheduled.
	attempt := 0
	condition := func(pollCtx context.Context) (bool, error) {
		// Bail out when the process has already died, rather than polling
		// a port nothing will ever bind.
		if cfg.ProcessExited != nil {
			select {
			case <-cfg.ProcessExited:
				return false, fmt.Errorf("process %s: %w", cfg.Name, ErrProcessExited)
			default:
			}
		}

		attempt++
		ready, err := check(pollCtx, attempt)
		if err != nil {
			return false, err
		}
		if ready {
			log.Debug("wait succeeded", "name", cfg.Name, "port", cfg.Port, "attempt", attempt)
		}
		return ready, nil
	}

	var err error
	if cfg.Timeout > 0 {
		err = wait.PollUntilContextTimeout(ctx, cfg.Interval, cfg.Timeout, true, condition)
	} else {
		err = wait.PollUntilContextCancel(ctx, cfg.Interval, true, condition)
	}
	if err != nil {
		return fmt.Errorf("wait for %s readiness on port %d: %w", cfg.Name, cfg.Port, err)
	}
	return nil
}
