package kernels

import (
	"github.com/notebook-eng/kernels/internal/channels"
	"github.com/notebook-eng/kernels/internal/connfile"
	"github.com/notebook-eng/kernels/internal/launch"
	"github.com/notebook-eng/kernels/internal/netutil"
	"github.com/notebook-eng/kernels/internal/process"
	"github.com/notebook-eng/kernels/internal/specs"
)

// Sentinel error categories. Every error returned by this package wraps one
// of these (or carries enough context on its own); match with errors.Is.
const (
	// ErrSpecNotFound reports that no kernel spec with the requested name
	// exists on the search path.
	ErrSpecNotFound = specs.ErrSpecNotFound

	// ErrPortAllocation reports a failure to allocate the five channel
	// ports.
	ErrPortAllocation = netutil.ErrPortAllocation

	// ErrConnectionFile reports an I/O failure reading, writing, or
	// removing a connection file.
	ErrConnectionFile = connfile.ErrConnectionFile

	// ErrSpawn reports that the kernel process could not be started.
	ErrSpawn = launch.ErrSpawn

	// ErrChannelOpen reports a failure dialing the kernel's channel
	// sockets. When Launch returns it, the kernel process itself is running
	// and is returned alongside the error; terminating it is the caller's
	// decision.
	ErrChannelOpen = channels.ErrChannelOpen

	// ErrNoChannels is returned by Kernel.Channels when the kernel was
	// launched without channels.
	ErrNoChannels = launch.ErrNoChannels

	// ErrAlreadyStarted reports a second start of the same process.
	ErrAlreadyStarted = process.ErrAlreadyStarted

	// ErrBadSignature reports a kernel message whose HMAC signature does
	// not verify against the session key.
	ErrBadSignature = channels.ErrBadSignature
)
