// Package process provides utilities for managing kernel child-process lifecycle.
//
// It defines BaseProcess for common start/stop behavior (single cmd.Wait
// goroutine, SIGTERM-then-SIGKILL stop, at-most-once exit observers),
// WaitReady for polling-based readiness checks, and LogFiles for optional
// capture of a kernel's stdout/stderr.
package process
