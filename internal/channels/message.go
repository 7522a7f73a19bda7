package channels

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/notebook-eng/kernels/internal/sentinel"
)

// protocolVersion is the messaging protocol version stamped into outgoing
// message headers.
const protocolVersion = "5.3"

// wireDelimiter separates routing identities from the signed message body on
// the wire.
var wireDelimiter = []byte("<IDS|MSG>")

// ErrBadWire is returned when an incoming frame sequence is not a valid
// kernel message.
const ErrBadWire = sentinel.Error("malformed wire message")

// ErrBadSignature is returned when an incoming message's HMAC signature does
// not match its body. A bad signature means the peer does not hold the
// session key from the connection file; the message must not be trusted.
const ErrBadSignature = sentinel.Error("message signature mismatch")

// Header is the fixed header every kernel message carries.
type Header struct {
	MsgID    string `json:"msg_id"`
	Session  string `json:"session"`
	Username string `json:"username"`
	Date     string `json:"date"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version"`
}

// Message is a decoded kernel message. ParentHeader, Metadata, and Content
// are kept as raw JSON: the bootstrap handshake never needs to interpret
// them beyond passing them through, and callers decode Content into their
// own types.
type Message struct {
	Identities   [][]byte
	Header       Header
	ParentHeader json.RawMessage
	Metadata     json.RawMessage
	Content      json.RawMessage
	Buffers      [][]byte
}

// emptyDict is the serialized form of an absent JSON object section.
var emptyDict = json.RawMessage("{}")

// normalize fills absent JSON sections with empty objects so every serialized
// message carries all four body frames.
func (m *Message) normalize() {
	if len(m.ParentHeader) == 0 {
		m.ParentHeader = emptyDict
	}
	if len(m.Metadata) == 0 {
		m.Metadata = emptyDict
	}
	if len(m.Content) == 0 {
		m.Content = emptyDict
	}
}

// splitWire separates a raw frame sequence into identities and the frames
// after the delimiter.
func splitWire(frames [][]byte) (identities [][]byte, body [][]byte, err error) {
	for i, f := range frames {
		if bytes.Equal(f, wireDelimiter) {
			return frames[:i], frames[i+1:], nil
		}
	}
	return nil, nil, fmt.Errorf("%w: no delimiter in %d frames", ErrBadWire, len(frames))
}
