// Package channels opens and manages the messaging channels of a launched
// kernel: shell, control, and stdin (DEALER), iopub (SUB), and heartbeat
// (REQ), all over ZeroMQ.
//
// The package implements just enough of the kernel wire protocol to bootstrap
// a connection: framing, HMAC-SHA256 message signing, the heartbeat
// ping/echo, and the kernel_info handshake. Higher-level message schemas are
// out of scope; callers work with raw frames through the Channel interface.
package channels
