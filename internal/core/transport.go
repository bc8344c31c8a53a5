package core

import "context"

// WebSocket close codes used by the core.
const (
	CloseNormal        = 1000
	CloseGoingAway     = 1001
	CloseProtocolError = 1002
	CloseInternalError = 1011
	// CloseUnauthorized is sent when the handshake carries no valid identity.
	CloseUnauthorized = 4000
)

// FrameKind classifies an inbound frame.
type FrameKind uint8

const (
	FrameText FrameKind = iota
	FrameBinary
	FramePong
	FrameClose
	// FrameUnsupported covers continuation and other frames the core
	// treats as a protocol violation.
	FrameUnsupported
)

// Frame is one inbound frame as surfaced by a Transport.
type Frame struct {
	Kind        FrameKind
	Data        []byte
	CloseCode   int
	CloseReason string
}

// Transport is the bidirectional frame stream of a single connection.
// WriteFrame may be called concurrently with ReadFrame and Ping.
type Transport interface {
	ReadFrame(ctx context.Context) (Frame, error)
	WriteFrame(ctx context.Context, binary bool, data []byte) error
	// Ping sends a liveness probe and returns once it is acknowledged.
	Ping(ctx context.Context) error
	Close(code int, reason string) error
}
