package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Heartbeat sends one ping over the hb channel and waits for the kernel to
// echo it back. The hb channel is a bare echo service with no message
// framing, so the payload is compared byte for byte.
func (cs *channelSet) Heartbeat(ctx context.Context) error {
	ping := []byte("ping-" + uuid.NewString())
	if err := cs.hb.Send(ctx, [][]byte{ping}); err != nil {
		return err
	}
	frames, err := cs.hb.Recv(ctx)
	if err != nil {
		return err
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], ping) {
		return fmt.Errorf("heartbeat echo mismatch: sent %q, got %d frames", ping, len(frames))
	}
	cs.log.Debug("heartbeat ok")
	return nil
}

// KernelInfo sends a kernel_info_request on the shell channel and returns the
// content of the matching kernel_info_reply. Replies to other requests are
// skipped. KernelInfo imposes no deadline of its own; bound it through ctx.
func (cs *channelSet) KernelInfo(ctx context.Context) (json.RawMessage, error) {
	req := cs.session.NewMessage("kernel_info_request")
	frames, err := cs.session.Serialize(req)
	if err != nil {
		return nil, fmt.Errorf("kernel_info request: %w", err)
	}
	if err := cs.shell.Send(ctx, frames); err != nil {
		return nil, err
	}

	for {
		raw, err := cs.shell.Recv(ctx)
		if err != nil {
			return nil, err
		}
		reply, err := cs.session.Deserialize(raw)
		if err != nil {
			return nil, fmt.Errorf("kernel_info reply: %w", err)
		}
		if reply.Header.MsgType != "kernel_info_reply" {
			cs.log.Debug("skipping unrelated shell message",
				"msg_type", reply.Header.MsgType)
			continue
		}
		var parent Header
		if err := json.Unmarshal(reply.ParentHeader, &parent); err == nil && parent.MsgID != "" && parent.MsgID != req.Header.MsgID {
			continue
		}
		return reply.Content, nil
	}
}

// InterruptRequest sends interrupt_request on the control channel and waits
// for interrupt_reply.
func (cs *channelSet) InterruptRequest(ctx context.Context) error {
	req := cs.session.NewMessage("interrupt_request")
	frames, err := cs.session.Serialize(req)
	if err != nil {
		return fmt.Errorf("interrupt request: %w", err)
	}
	if err := cs.control.Send(ctx, frames); err != nil {
		return err
	}

	for {
		raw, err := cs.control.Recv(ctx)
		if err != nil {
			return err
		}
		reply, err := cs.session.Deserialize(raw)
		if err != nil {
			return fmt.Errorf("interrupt reply: %w", err)
		}
		if reply.Header.MsgType == "interrupt_reply" {
			return nil
		}
		cs.log.Debug("skipping unrelated control message",
			"msg_type", reply.Header.MsgType)
	}
}
