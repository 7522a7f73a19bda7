// Package connfile builds and persists Jupyter kernel connection descriptors.
//
// A ConnectionInfo carries the protocol version, the random HMAC session key,
// the signature scheme, the transport, the bind IP, and the five channel
// ports in canonical order. Write serializes it atomically to a uniquely
// named kernel-<uuid>.json file in the runtime directory; Read parses one
// back; Remove deletes idempotently so exit observers can fire more than once.
package connfile
