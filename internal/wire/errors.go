// Package wire implements the engine's binary protocol: the fixed 15-byte
// packet header, the typed payloads carried inside it, and the snapshot
// encoding broadcast by the server.
package wire

import "errors"

// Decode errors. The receive path never lets these escape a drain loop
// (see internal/gameserver and internal/gameclient) — a malformed datagram
// is indistinguishable from a hostile one and is always dropped silently.
var (
	// ErrMalformedPacket is returned when a buffer is shorter than HeaderSize.
	ErrMalformedPacket = errors.New("wire: packet shorter than header")
	// ErrBadProtocol is returned when the protocol identifier doesn't match.
	ErrBadProtocol = errors.New("wire: bad protocol id")
	// ErrTruncatedPayload is returned when fewer bytes follow the header
	// than the header's payload length field declares.
	ErrTruncatedPayload = errors.New("wire: truncated payload")
	// ErrMalformedSnapshot is returned when a snapshot buffer is shorter
	// than its declared entity count requires.
	ErrMalformedSnapshot = errors.New("wire: malformed snapshot")
)
