package connfile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var testPorts = []int{50001, 50002, 50003, 50004, 50005}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("assigns ports by role order", func(t *testing.T) {
		t.Parallel()
		c, err := New("127.0.0.1", testPorts)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if c.HBPort != 50001 || c.ControlPort != 50002 || c.ShellPort != 50003 ||
			c.StdinPort != 50004 || c.IOPubPort != 50005 {
			t.Errorf("ports assigned out of role order: %+v", c)
		}
	})

	t.Run("fixed fields", func(t *testing.T) {
		t.Parallel()
		c, err := New("", testPorts)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if c.Version != 5 {
			t.Errorf("Version = %d, want 5", c.Version)
		}
		if c.SignatureScheme != "hmac-sha256" {
			t.Errorf("SignatureScheme = %q", c.SignatureScheme)
		}
		if c.Transport != "tcp" {
			t.Errorf("Transport = %q", c.Transport)
		}
		if c.IP != "127.0.0.1" {
			t.Errorf("IP = %q, want loopback default", c.IP)
		}
	})

	t.Run("fresh key per descriptor", func(t *testing.T) {
		t.Parallel()
		c1, _ := New("", testPorts)
		c2, _ := New("", testPorts)
		if c1.Key == "" {
			t.Fatal("key must not be empty")
		}
		if c1.Key == c2.Key {
			t.Error("two descriptors share a session key")
		}
	})

	t.Run("wrong port count rejected", func(t *testing.T) {
		t.Parallel()
		if _, err := New("", []int{1, 2, 3}); err == nil {
			t.Error("expected error for 3 ports")
		}
	})
}

func TestConnectionInfo_Endpoint(t *testing.T) {
	t.Parallel()

	c, err := New("127.0.0.1", testPorts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got, want := c.Endpoint(c.ShellPort), "tcp://127.0.0.1:50003"; got != want {
		t.Errorf("Endpoint() = %q, want %q", got, want)
	}
}

func TestConnectionInfo_WriteAndRead(t *testing.T) {
	t.Parallel()

	t.Run("round trip is exact", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		c, err := New("127.0.0.1", testPorts)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		path, err := c.Write(dir)
		if err != nil {
			t.Fatalf("Write() error: %v", err)
		}
		got, err := Read(path)
		if err != nil {
			t.Fatalf("Read() error: %v", err)
		}
		if *got != *c {
			t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, c)
		}
	})

	t.Run("canonical key order on disk", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		c, _ := New("", testPorts)
		path, err := c.Write(dir)
		if err != nil {
			t.Fatalf("Write() error: %v", err)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read raw: %v", err)
		}
		order := []string{
			`"version"`, `"key"`, `"signature_scheme"`, `"transport"`, `"ip"`,
			`"hb_port"`, `"control_port"`, `"shell_port"`, `"stdin_port"`, `"iopub_port"`,
		}
		last := -1
		for _, k := range order {
			idx := strings.Index(string(raw), k)
			if idx < 0 {
				t.Fatalf("key %s missing from file", k)
			}
			if idx < last {
				t.Errorf("key %s out of canonical order", k)
			}
			last = idx
		}
	})

	t.Run("file name embeds unique id", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		c, _ := New("", testPorts)
		p1, err := c.Write(dir)
		if err != nil {
			t.Fatalf("first Write(): %v", err)
		}
		p2, err := c.Write(dir)
		if err != nil {
			t.Fatalf("second Write(): %v", err)
		}
		if p1 == p2 {
			t.Error("two writes produced the same file name")
		}
		base := filepath.Base(p1)
		if !strings.HasPrefix(base, "kernel-") || !strings.HasSuffix(base, ".json") {
			t.Errorf("file name %q does not match kernel-<uuid>.json", base)
		}
	})

	t.Run("file mode restricts access", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		c, _ := New("", testPorts)
		path, err := c.Write(dir)
		if err != nil {
			t.Fatalf("Write() error: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("mode = %o, want 600", perm)
		}
	})

	t.Run("creates missing runtime dir", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "runtime", "jupyter")
		c, _ := New("", testPorts)
		if _, err := c.Write(dir); err != nil {
			t.Fatalf("Write() into missing dir: %v", err)
		}
	})

	t.Run("empty runtime dir rejected", func(t *testing.T) {
		t.Parallel()
		c, _ := New("", testPorts)
		if _, err := c.Write(""); !errors.Is(err, ErrConnectionFile) {
			t.Errorf("error = %v, want ErrConnectionFile", err)
		}
	})
}

func TestRead_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		contents string
	}{
		"not json":         {contents: "not json at all"},
		"missing key":      {contents: `{"version":5,"transport":"tcp","ip":"127.0.0.1","hb_port":1,"control_port":2,"shell_port":3,"stdin_port":4,"iopub_port":5}`},
		"port out of range": {contents: `{"version":5,"key":"k","transport":"tcp","ip":"127.0.0.1","hb_port":0,"control_port":2,"shell_port":3,"stdin_port":4,"iopub_port":5}`},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "kernel-bad.json")
			if err := os.WriteFile(path, []byte(tc.contents), 0o600); err != nil {
				t.Fatalf("setup: %v", err)
			}
			if _, err := Read(path); !errors.Is(err, ErrConnectionFile) {
				t.Errorf("error = %v, want ErrConnectionFile", err)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := Read(filepath.Join(t.TempDir(), "nope.json")); !errors.Is(err, ErrConnectionFile) {
			t.Errorf("error = %v, want ErrConnectionFile", err)
		}
	})
}

func TestRemove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, _ := New("", testPorts)
	path, err := c.Write(dir)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if err := Remove(path); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	// Second removal must be a no-op, not an error.
	if err := Remove(path); err != nil {
		t.Fatalf("second Remove() error: %v", err)
	}
}

func TestConnectionInfo_JSONTags(t *testing.T) {
	t.Parallel()

	c, _ := New("", testPorts)
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"version", "key", "signature_scheme", "transport", "ip",
		"hb_port", "control_port", "shell_port", "stdin_port", "iopub_port"} {
		if _, ok := m[k]; !ok {
			t.Errorf("field %q missing from JSON", k)
		}
	}
	if len(m) != 10 {
		t.Errorf("expected 10 fields, got %d", len(m))
	}
}
