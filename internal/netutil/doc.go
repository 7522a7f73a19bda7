// Package netutil provides network utility functions for kernel launching.
// Its central type, PortRegistry, allocates sets of ephemeral ports by holding
// all listeners open simultaneously to guarantee distinctness, and tracks
// reserved ports across the process to prevent duplicate allocation from the
// TOCTOU race between concurrent launches.
package netutil
