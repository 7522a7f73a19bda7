package kernels

import (
	"github.com/notebook-eng/kernels/internal/channels"
	"github.com/notebook-eng/kernels/internal/connfile"
	"github.com/notebook-eng/kernels/internal/launch"
	"github.com/notebook-eng/kernels/internal/specs"
)

// KernelSpec describes one installed kernel: its launch argv, display name,
// language, env block, and interrupt mode.
type KernelSpec = specs.KernelSpec

// ConnectionInfo is the connection descriptor shared between this process
// and a kernel: ports, transport, and the HMAC session key.
type ConnectionInfo = connfile.ConnectionInfo

// Kernel is a running kernel process with its connection resources.
type Kernel = launch.Kernel

// Channel is a single messaging channel of a running kernel, carrying raw
// wire frames.
type Channel = channels.Channel

// Channels is the full channel set of a running kernel: shell, control,
// stdin, iopub, and heartbeat.
type Channels = channels.Channels

// ChannelOpener dials the channel set for a connection descriptor. Supply a
// custom implementation through WithChannelOpener to replace the ZeroMQ
// default, e.g. with a fake in tests.
type ChannelOpener = channels.Opener

// Argv placeholder tokens, replaced whole-token at launch time.
const (
	// ConnectionFilePlaceholder expands to the connection file's absolute
	// path.
	ConnectionFilePlaceholder = specs.ConnectionFilePlaceholder
	// ResourceDirPlaceholder expands to the kernel spec's directory.
	ResourceDirPlaceholder = specs.ResourceDirPlaceholder
)
