package kernels

import (
	"log/slog"
	"sync/atomic"
)

// customLogger holds a caller-provided logger, stored atomically so
// SetLogger is safe to call concurrently with launches.
var customLogger atomic.Pointer[slog.Logger]

// defaultLogger caches the default-derived logger so it is not re-created on
// every call. SetLogger(nil) clears the cache, letting the next call pick up
// a new slog.Default().
var defaultLogger atomic.Pointer[slog.Logger]

// SetLogger replaces the package-level logger used by registries and
// launchers constructed afterwards. If l is nil, the logger resets to
// slog.Default() with a "component" attribute, re-derived on the next use.
//
// Loggers passed explicitly through options are unaffected.
func SetLogger(l *slog.Logger) {
	customLogger.Store(l)
	defaultLogger.Store(nil)
}

// logger returns the current package-level logger.
func logger() *slog.Logger {
	if l := customLogger.Load(); l != nil {
		return l
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := slog.Default().With("component", "kernels")
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	if l2 := defaultLogger.Load(); l2 != nil {
		return l2
	}
	return l
}
