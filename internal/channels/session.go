package channels

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Session produces and verifies signed messages for one kernel connection.
// The key is the HMAC secret from the connection file; every message this
// process sends carries the same session id.
type Session struct {
	id       string
	username string
	key      []byte
}

// NewSession creates a session around the given connection key. An empty key
// disables signing, matching kernels launched with an empty "key" field.
func NewSession(key string) *Session {
	username := os.Getenv("USER")
	if username == "" {
		username = "kernel"
	}
	return &Session{
		id:       uuid.NewString(),
		username: username,
		key:      []byte(key),
	}
}

// ID returns the session identifier stamped into outgoing message headers.
func (s *Session) ID() string {
	return s.id
}

// NewMessage builds a message of the given type with a fresh msg_id and this
// session's identity in the header.
func (s *Session) NewMessage(msgType string) Message {
	return Message{
		Header: Header{
			MsgID:    uuid.NewString(),
			Session:  s.id,
			Username: s.username,
			Date:     time.Now().UTC().Format(time.RFC3339),
			MsgType:  msgType,
			Version:  protocolVersion,
		},
	}
}

// sign computes the hex HMAC-SHA256 over the four body frames in wire order.
// With an empty key the signature is the empty string.
func (s *Session) sign(header, parent, metadata, content []byte) []byte {
	if len(s.key) == 0 {
		return []byte{}
	}
	mac := hmac.New(sha256.New, s.key)
	for _, part := range [][]byte{header, parent, metadata, content} {
		mac.Write(part)
	}
	sig := mac.Sum(nil)
	out := make([]byte, hex.EncodedLen(len(sig)))
	hex.Encode(out, sig)
	return out
}

// Serialize encodes a message into wire frames:
//
//	identities... | <IDS|MSG> | signature | header | parent | metadata | content | buffers...
func (s *Session) Serialize(m Message) ([][]byte, error) {
	m.normalize()
	header, err := json.Marshal(m.Header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	frames := make([][]byte, 0, len(m.Identities)+6+len(m.Buffers))
	frames = append(frames, m.Identities...)
	frames = append(frames, wireDelimiter)
	frames = append(frames, s.sign(header, m.ParentHeader, m.Metadata, m.Content))
	frames = append(frames, header, m.ParentHeader, m.Metadata, m.Content)
	frames = append(frames, m.Buffers...)
	return frames, nil
}

// Deserialize decodes wire frames into a Message, verifying the signature
// against the session key. Returns ErrBadSignature when verification fails
// and ErrBadWire when the frame sequence is structurally invalid.
func (s *Session) Deserialize(frames [][]byte) (Message, error) {
	identities, body, err := splitWire(frames)
	if err != nil {
		return Message{}, err
	}
	if len(body) < 5 {
		return Message{}, fmt.Errorf("%w: %d frames after delimiter, need at least 5", ErrBadWire, len(body))
	}

	sig, header, parent, metadata, content := body[0], body[1], body[2], body[3], body[4]
	if len(s.key) > 0 {
		want := s.sign(header, parent, metadata, content)
		if !hmac.Equal(sig, want) {
			return Message{}, ErrBadSignature
		}
	}

	var m Message
	if err := json.Unmarshal(header, &m.Header); err != nil {
		return Message{}, fmt.Errorf("%w: parse header: %w", ErrBadWire, err)
	}
	m.Identities = identities
	m.ParentHeader = json.RawMessage(parent)
	m.Metadata = json.RawMessage(metadata)
	m.Content = json.RawMessage(content)
	m.Buffers = body[5:]
	return m, nil
}
