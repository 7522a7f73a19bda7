package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-zeromq/zmq4"
	"golang.org/x/sync/errgroup"

	"github.com/notebook-eng/kernels/internal/connfile"
	"github.com/notebook-eng/kernels/internal/sentinel"
)

// ErrChannelOpen is the category error for failures while dialing a kernel's
// channel sockets.
const ErrChannelOpen = sentinel.Error("channel open failed")

// Channel names, also used as logging context.
const (
	NameShell     = "shell"
	NameControl   = "control"
	NameStdin     = "stdin"
	NameIOPub     = "iopub"
	NameHeartbeat = "hb"
)

// Channel is one messaging channel of a running kernel, carrying raw wire
// frames. Use a Session to build and decode signed messages.
type Channel interface {
	// Name returns the channel's protocol name (shell, control, stdin,
	// iopub, hb).
	Name() string
	// Send writes one multi-frame message.
	Send(ctx context.Context, frames [][]byte) error
	// Recv reads one multi-frame message, honoring ctx cancellation.
	Recv(ctx context.Context) ([][]byte, error)
	Close() error
}

// Channels is the full channel set of one running kernel.
type Channels interface {
	Shell() Channel
	Control() Channel
	Stdin() Channel
	IOPub() Channel

	// Heartbeat sends one ping over the hb channel and waits for the echo.
	Heartbeat(ctx context.Context) error
	// KernelInfo performs the kernel_info handshake on the shell channel and
	// returns the reply content.
	KernelInfo(ctx context.Context) (json.RawMessage, error)
	// InterruptRequest sends interrupt_request on the control channel and
	// waits for the matching reply. For kernels with interrupt_mode
	// "message"; signal-mode kernels are interrupted with SIGINT instead.
	InterruptRequest(ctx context.Context) error

	// Close tears down every socket. Safe to call more than once.
	Close() error
}

// Opener dials the channel set for a connection descriptor. It is the seam
// that lets launches skip channel opening or substitute a different
// transport.
type Opener interface {
	Open(ctx context.Context, info *connfile.ConnectionInfo, logger *slog.Logger) (Channels, error)
}

// Defaults for the dial retry loop. A kernel binds its sockets during
// interpreter startup, which can take seconds; the dialer keeps retrying
// connection refusals until the retry budget or ctx runs out.
const (
	DefaultDialRetry      = 250 * time.Millisecond
	DefaultDialMaxRetries = 40
)

// ZMQOpener opens kernel channels over ZeroMQ TCP sockets. The zero value is
// ready to use with default dial retry settings.
type ZMQOpener struct {
	// DialRetry is the delay between connect attempts to a not-yet-bound
	// kernel socket. Zero means DefaultDialRetry.
	DialRetry time.Duration
	// DialMaxRetries bounds connect attempts per socket. Zero means
	// DefaultDialMaxRetries; negative means retry until ctx is done.
	DialMaxRetries int
}

var _ Opener = (*ZMQOpener)(nil)

// Open creates the five sockets and dials them concurrently. On any dial
// failure every socket is closed and a nil Channels is returned with an error
// wrapping ErrChannelOpen. Open imposes no deadline of its own; bound it
// through ctx.
func (o *ZMQOpener) Open(ctx context.Context, info *connfile.ConnectionInfo, logger *slog.Logger) (Channels, error) {
	if info == nil {
		return nil, fmt.Errorf("%w: nil connection info", ErrChannelOpen)
	}
	if logger == nil {
		logger = slog.Default()
	}

	retry := o.DialRetry
	if retry == 0 {
		retry = DefaultDialRetry
	}
	maxRetries := o.DialMaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultDialMaxRetries
	}

	session := NewSession(info.Key)
	identity := zmq4.SocketIdentity(session.ID())
	opts := []zmq4.Option{
		zmq4.WithDialerRetry(retry),
		zmq4.WithDialerMaxRetries(maxRetries),
	}
	dealerOpts := append([]zmq4.Option{zmq4.WithID(identity)}, opts...)

	cs := &channelSet{
		session: session,
		log:     logger,
		shell:   &socketChannel{name: NameShell, sock: zmq4.NewDealer(ctx, dealerOpts...)},
		control: &socketChannel{name: NameControl, sock: zmq4.NewDealer(ctx, dealerOpts...)},
		stdin:   &socketChannel{name: NameStdin, sock: zmq4.NewDealer(ctx, dealerOpts...)},
		iopub:   &socketChannel{name: NameIOPub, sock: zmq4.NewSub(ctx, opts...)},
		hb:      &socketChannel{name: NameHeartbeat, sock: zmq4.NewReq(ctx, opts...)},
	}

	// Subscribe to everything before dialing so no broadcast is filtered
	// once the connection comes up.
	if err := cs.iopub.sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		_ = cs.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %w", ErrChannelOpen, NameIOPub, err)
	}

	targets := map[*socketChannel]int{
		cs.shell:   info.ShellPort,
		cs.control: info.ControlPort,
		cs.stdin:   info.StdinPort,
		cs.iopub:   info.IOPubPort,
		cs.hb:      info.HBPort,
	}

	var g errgroup.Group
	for ch, port := range targets {
		ch := ch
		endpoint := info.Endpoint(port)
		g.Go(func() error {
			if err := ch.sock.Dial(endpoint); err != nil {
				return fmt.Errorf("dial %s at %s: %w", ch.name, endpoint, err)
			}
			logger.Debug("channel connected", "channel", ch.name, "endpoint", endpoint)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = cs.Close()
		return nil, fmt.Errorf("%w: %w", ErrChannelOpen, err)
	}
	return cs, nil
}

// socketChannel adapts a zmq4 socket to the Channel interface.
type socketChannel struct {
	name string
	sock zmq4.Socket
}

var _ Channel = (*socketChannel)(nil)

func (c *socketChannel) Name() string { return c.name }

func (c *socketChannel) Send(ctx context.Context, frames [][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.sock.SendMulti(zmq4.NewMsgFrom(frames...)); err != nil {
		return fmt.Errorf("send on %s: %w", c.name, err)
	}
	return nil
}

// Recv reads one message, returning early if ctx expires. The underlying
// socket read has no cancellation hook, so an abandoned read keeps running
// until the socket is closed; after a ctx-aborted Recv the channel should
// only be closed, not reused.
func (c *socketChannel) Recv(ctx context.Context) ([][]byte, error) {
	type result struct {
		msg zmq4.Msg
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := c.sock.Recv()
		ch <- result{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("recv on %s: %w", c.name, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("recv on %s: %w", c.name, r.err)
		}
		return r.msg.Frames, nil
	}
}

func (c *socketChannel) Close() error {
	return c.sock.Close()
}

// channelSet is the ZeroMQ-backed Channels implementation.
type channelSet struct {
	session *Session
	log     *slog.Logger

	shell   *socketChannel
	control *socketChannel
	stdin   *socketChannel
	iopub   *socketChannel
	hb      *socketChannel
}

var _ Channels = (*channelSet)(nil)

func (cs *channelSet) Shell() Channel   { return cs.shell }
func (cs *channelSet) Control() Channel { return cs.control }
func (cs *channelSet) Stdin() Channel   { return cs.stdin }
func (cs *channelSet) IOPub() Channel   { return cs.iopub }

// Session returns the signing session bound to this channel set.
func (cs *channelSet) Session() *Session { return cs.session }

// Close closes all five sockets, returning the first error seen. zmq4 Close
// is idempotent, so Close is safe to call repeatedly.
func (cs *channelSet) Close() error {
	var firstErr error
	for _, ch := range []*socketChannel{cs.shell, cs.control, cs.stdin, cs.iopub, cs.hb} {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", ch.name, err)
		}
	}
	return firstErr
}
