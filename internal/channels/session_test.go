package channels

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestSessionSerializeDeserialize(t *testing.T) {
	t.Parallel()

	t.Run("round trip preserves message", func(t *testing.T) {
		t.Parallel()
		s := NewSession("secret-key")
		msg := s.NewMessage("kernel_info_request")
		msg.Content = json.RawMessage(`{"restart":false}`)

		frames, err := s.Serialize(msg)
		if err != nil {
			t.Fatalf("Serialize() error: %v", err)
		}
		got, err := s.Deserialize(frames)
		if err != nil {
			t.Fatalf("Deserialize() error: %v", err)
		}
		if got.Header != msg.Header {
			t.Errorf("header = %+v, want %+v", got.Header, msg.Header)
		}
		if string(got.Content) != `{"restart":false}` {
			t.Errorf("content = %s", got.Content)
		}
		if string(got.ParentHeader) != "{}" {
			t.Errorf("parent header = %s, want {}", got.ParentHeader)
		}
	})

	t.Run("identities survive the round trip", func(t *testing.T) {
		t.Parallel()
		s := NewSession("secret-key")
		msg := s.NewMessage("status")
		msg.Identities = [][]byte{[]byte("routing-id")}

		frames, err := s.Serialize(msg)
		if err != nil {
			t.Fatalf("Serialize() error: %v", err)
		}
		got, err := s.Deserialize(frames)
		if err != nil {
			t.Fatalf("Deserialize() error: %v", err)
		}
		if len(got.Identities) != 1 || !bytes.Equal(got.Identities[0], []byte("routing-id")) {
			t.Errorf("identities = %q", got.Identities)
		}
	})

	t.Run("tampered content fails verification", func(t *testing.T) {
		t.Parallel()
		s := NewSession("secret-key")
		msg := s.NewMessage("execute_request")
		msg.Content = json.RawMessage(`{"code":"1+1"}`)

		frames, err := s.Serialize(msg)
		if err != nil {
			t.Fatalf("Serialize() error: %v", err)
		}
		// Content is the last frame when there are no buffers.
		frames[len(frames)-1] = []byte(`{"code":"__import__('os')"}`)

		if _, err := s.Deserialize(frames); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("error = %v, want ErrBadSignature", err)
		}
	})

	t.Run("wrong key fails verification", func(t *testing.T) {
		t.Parallel()
		sender := NewSession("key-a")
		receiver := NewSession("key-b")

		frames, err := sender.Serialize(sender.NewMessage("status"))
		if err != nil {
			t.Fatalf("Serialize() error: %v", err)
		}
		if _, err := receiver.Deserialize(frames); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("error = %v, want ErrBadSignature", err)
		}
	})

	t.Run("empty key disables signing", func(t *testing.T) {
		t.Parallel()
		s := NewSession("")
		frames, err := s.Serialize(s.NewMessage("status"))
		if err != nil {
			t.Fatalf("Serialize() error: %v", err)
		}
		if _, err := s.Deserialize(frames); err != nil {
			t.Fatalf("Deserialize() error: %v", err)
		}
	})

	t.Run("missing delimiter is malformed", func(t *testing.T) {
		t.Parallel()
		s := NewSession("secret-key")
		if _, err := s.Deserialize([][]byte{[]byte("a"), []byte("b")}); !errors.Is(err, ErrBadWire) {
			t.Fatalf("error = %v, want ErrBadWire", err)
		}
	})

	t.Run("too few body frames is malformed", func(t *testing.T) {
		t.Parallel()
		s := NewSession("secret-key")
		frames := [][]byte{wireDelimiter, []byte("sig"), []byte("{}")}
		if _, err := s.Deserialize(frames); !errors.Is(err, ErrBadWire) {
			t.Fatalf("error = %v, want ErrBadWire", err)
		}
	})
}

func TestNewMessageHeader(t *testing.T) {
	t.Parallel()

	s := NewSession("k")
	a := s.NewMessage("kernel_info_request")
	b := s.NewMessage("kernel_info_request")

	if a.Header.MsgID == b.Header.MsgID {
		t.Error("msg ids must be unique per message")
	}
	if a.Header.Session != s.ID() || b.Header.Session != s.ID() {
		t.Error("messages must carry the session id")
	}
	if a.Header.Version != protocolVersion {
		t.Errorf("version = %q, want %q", a.Header.Version, protocolVersion)
	}
	if a.Header.MsgType != "kernel_info_request" {
		t.Errorf("msg_type = %q", a.Header.MsgType)
	}
}
