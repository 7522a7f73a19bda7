package connfile

import (
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/notebook-eng/kernels/internal/fileutil"
	"github.com/notebook-eng/kernels/internal/sentinel"
)

// ErrConnectionFile is the category error for connection file I/O failures.
// Errors from Write, Read, and Remove wrap it so callers can match the class
// with errors.Is.
const ErrConnectionFile = sentinel.Error("connection file")

// ProtocolVersion is the Jupyter messaging protocol major version recorded in
// every connection file.
const ProtocolVersion = 5

// SignatureScheme is the only message signature scheme this library emits.
const SignatureScheme = "hmac-sha256"

// PortCount is the number of ports a connection descriptor carries, one per
// channel.
const PortCount = 5

// Positional port roles. AllocatePorts returns ports in this order and the
// descriptor assigns them by these indices; callers must not reorder.
const (
	PortHeartbeat = iota
	PortControl
	PortShell
	PortStdin
	PortIOPub
)

// ConnectionInfo is the shared secret and port assignment that let a
// front-end and a kernel process establish a messaging session. Field order
// matters: encoding/json serializes struct fields in declaration order, and
// this order is the canonical one for connection files.
//
// A ConnectionInfo is never mutated after New; it is written verbatim to the
// connection file.
type ConnectionInfo struct {
	Version         int    `json:"version"`
	Key             string `json:"key"`
	SignatureScheme string `json:"signature_scheme"`
	Transport       string `json:"transport"`
	IP              string `json:"ip"`
	HBPort          int    `json:"hb_port"`
	ControlPort     int    `json:"control_port"`
	ShellPort       int    `json:"shell_port"`
	StdinPort       int    `json:"stdin_port"`
	IOPubPort       int    `json:"iopub_port"`
}

// New builds a ConnectionInfo from five allocated ports, ordered by the
// Port* role constants. It generates a fresh random session key with enough
// entropy to serve as an HMAC secret. New performs no I/O.
func New(ip string, ports []int) (*ConnectionInfo, error) {
	if len(ports) != PortCount {
		return nil, fmt.Errorf("need exactly %d ports, got %d", PortCount, len(ports))
	}
	if ip == "" {
		ip = "127.0.0.1"
	}
	return &ConnectionInfo{
		Version:         ProtocolVersion,
		Key:             uuid.NewString(),
		SignatureScheme: SignatureScheme,
		Transport:       "tcp",
		IP:              ip,
		HBPort:          ports[PortHeartbeat],
		ControlPort:     ports[PortControl],
		ShellPort:       ports[PortShell],
		StdinPort:       ports[PortStdin],
		IOPubPort:       ports[PortIOPub],
	}, nil
}

// validate checks the fields a well-formed descriptor must carry. It is
// applied to files read back from disk, where any process may have written
// the contents.
func (c *ConnectionInfo) validate() error {
	if c.Key == "" {
		return fmt.Errorf("missing session key")
	}
	if c.Transport == "" {
		return fmt.Errorf("missing transport")
	}
	if c.IP == "" {
		return fmt.Errorf("missing ip")
	}
	for _, p := range c.Ports() {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("port %d out of range", p)
		}
	}
	return nil
}

// Ports returns the five ports in role order (heartbeat, control, shell,
// stdin, iopub). The returned slice is a copy.
func (c *ConnectionInfo) Ports() []int {
	return []int{c.HBPort, c.ControlPort, c.ShellPort, c.StdinPort, c.IOPubPort}
}

// Endpoint returns the transport address for one of the descriptor's ports,
// e.g. "tcp://127.0.0.1:53217".
func (c *ConnectionInfo) Endpoint(port int) string {
	return c.Transport + "://" + net.JoinHostPort(c.IP, strconv.Itoa(port))
}

// Write persists the descriptor to a uniquely named file in runtimeDir and
// returns the file's absolute path. The directory is created if missing. The
// file name embeds a random identifier (kernel-<uuid>.json) so concurrently
// launched kernels cannot collide. The write is atomic: a reader never
// observes a partial file.
func (c *ConnectionInfo) Write(runtimeDir string) (string, error) {
	if runtimeDir == "" {
		return "", fmt.Errorf("%w: runtime directory must not be empty", ErrConnectionFile)
	}
	if err := fileutil.EnsureDir(runtimeDir); err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnectionFile, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: marshal descriptor: %w", ErrConnectionFile, err)
	}

	path := filepath.Join(runtimeDir, "kernel-"+uuid.NewString()+".json")
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: resolve path: %w", ErrConnectionFile, err)
	}
	// 0600: the file holds the HMAC session key.
	if err := fileutil.WriteFileAtomic(abs, data, 0o600); err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnectionFile, err)
	}
	return abs, nil
}

// Read parses a connection file from disk.
func Read(path string) (*ConnectionInfo, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var c ConnectionInfo
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrConnectionFile, path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFile, path, err)
	}
	return &c, nil
}

// Remove deletes a connection file, treating "already gone" as success.
func Remove(path string) error {
	if err := fileutil.RemoveIfExists(path); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFile, err)
	}
	return nil
}
