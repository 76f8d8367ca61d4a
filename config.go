package wsclient

import (
	"time"

	"github.com/rs/zerolog"
)

// Default values applied by Connect when the corresponding Config field is
// left at its zero value. These match the defaults the reference Python
// wrapper layer passes to its native core (handshake_timeout_ms=5000,
// max_frame_size=1<<20).
const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultMaxFrameSize     = 1 << 20

	// maxFrameHeaderSize is the largest a frame header can be: 1 (fin/rsv/opcode)
	// + 1 (mask/len) + 8 (extended 64-bit length) + 4 (masking key, server
	// frames never carry one, but client encode paths reuse the constant).
	maxFrameHeaderSize = 14

	// maxHandshakeHeaderSize bounds how many bytes of response header this
	// client will buffer before declaring HandshakeMalformed.
	maxHandshakeHeaderSize = 8 * 1024
)

// Config holds the options supplied at Connect time. It is copied by value
// into the Connection and is never mutated afterwards.
type Config struct {
	// HandshakeTimeout bounds the opening handshake (DNS+TCP connect and the
	// HTTP upgrade exchange). Zero means DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// MaxFrameSize is the largest payload length this client will accept in
	// a single frame. Zero means DefaultMaxFrameSize. A server announcing a
	// larger length fails the frame with ErrFrameTooLarge before the
	// payload is buffered.
	MaxFrameSize int64

	// Subprotocol, if non-empty, is sent as Sec-WebSocket-Protocol and the
	// server's response value (if present) must be one this client sent.
	Subprotocol string

	// Origin, if non-empty, is sent as the Origin header.
	Origin string

	// UserAgent, if non-empty, is sent as the User-Agent header.
	UserAgent string

	// Logger receives structured debug events (handshake, control-frame
	// replies, status transitions). Nil means a no-op logger, so a caller
	// that does not opt in sees no output.
	Logger *zerolog.Logger
}

var nopLogger = zerolog.Nop()

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.Logger == nil {
		c.Logger = &nopLogger
	}
	return c
}
