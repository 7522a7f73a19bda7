package runtimedir

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"github.com/notebook-eng/kernels/internal/connfile"
)

// sweepLockRetryInterval is the interval between attempts to acquire the
// sweep lock while another sweeper holds it.
const sweepLockRetryInterval = 50 * time.Millisecond

// DefaultMinFileAge protects freshly written connection files whose kernel
// has not bound its sockets yet. Files younger than this are never swept.
const DefaultMinFileAge = 30 * time.Second

// DefaultProbeTimeout bounds the TCP dial to a candidate kernel's heartbeat
// port.
const DefaultProbeTimeout = 500 * time.Millisecond

// SweepConfig configures one garbage-collection pass.
type SweepConfig struct {
	// Dir is the runtime directory to sweep.
	Dir string
	// MinFileAge guards the race with concurrent launches: a connection
	// file can exist before its kernel answers on the heartbeat port. Zero
	// means DefaultMinFileAge.
	MinFileAge time.Duration
	// ProbeTimeout bounds each liveness dial. Zero means
	// DefaultProbeTimeout.
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// Sweep removes connection files whose kernel no longer answers on its
// heartbeat port, and returns the paths it removed. An exclusive file lock
// serializes sweepers across processes; acquisition waits until the lock is
// free or ctx is done.
//
// A kernel that binds only some of its sockets, or a file whose port has
// been reused by an unrelated process, can defeat the probe; the minimum
// file age keeps the common race (a kernel still starting up) out of reach.
func Sweep(ctx context.Context, cfg SweepConfig) ([]string, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("sweep: directory must not be empty")
	}
	minAge := cfg.MinFileAge
	if minAge == 0 {
		minAge = DefaultMinFileAge
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout == 0 {
		probeTimeout = DefaultProbeTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	lock, err := acquireSweepLock(ctx, filepath.Join(cfg.Dir, ".sweep.lock"))
	if err != nil {
		return nil, err
	}
	defer releaseSweepLock(log, lock)

	paths, err := filepath.Glob(filepath.Join(cfg.Dir, "kernel-*.json"))
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", cfg.Dir, err)
	}

	var removed []string
	now := time.Now()
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		fi, err := os.Stat(path)
		if err != nil {
			// Another process may remove files between Glob and Stat.
			continue
		}
		if now.Sub(fi.ModTime()) < minAge {
			log.Debug("skipping young connection file", "path", path)
			continue
		}

		info, err := connfile.Read(path)
		if err != nil {
			log.Warn("skipping unreadable connection file", "path", path, "error", err)
			continue
		}
		if kernelAlive(info, probeTimeout) {
			continue
		}

		if err := connfile.Remove(path); err != nil {
			log.Warn("removing stale connection file", "path", path, "error", err)
			continue
		}
		log.Info("removed stale connection file", "path", path, "hb_port", info.HBPort)
		removed = append(removed, path)
	}
	return removed, nil
}

// kernelAlive probes the heartbeat port. A successful TCP connect means some
// process is listening there, which is treated as the kernel being alive.
func kernelAlive(info *connfile.ConnectionInfo, timeout time.Duration) bool {
	addr := net.JoinHostPort(info.IP, strconv.Itoa(info.HBPort))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// acquireSweepLock takes an exclusive lock, retrying until acquired or ctx
// is done.
func acquireSweepLock(ctx context.Context, lockPath string) (*flock.Flock, error) {
	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, sweepLockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring sweep lock %s: %w", lockPath, err)
	}
	if !locked {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquiring sweep lock %s: %w", lockPath, ctx.Err())
		}
		return nil, fmt.Errorf("acquiring sweep lock %s: lock not acquired", lockPath)
	}
	return fl, nil
}

// releaseSweepLock releases the lock, leaving the lock file on disk: removing
// it could invalidate a lock concurrently acquired by another process.
func releaseSweepLock(logger *slog.Logger, fl *flock.Flock) {
	if fl != nil {
		if err := fl.Close(); err != nil {
			logger.Debug("failed to release sweep lock", "path", fl.Path(), "err", err)
		}
	}
}
