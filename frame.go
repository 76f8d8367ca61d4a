package wsclient

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math"
)

// opCode identifies the kind of a WebSocket frame, per RFC 6455 section 5.2.
type opCode byte

const (
	opContinuation opCode = 0x0
	opText         opCode = 0x1
	opBinary       opCode = 0x2
	opClose        opCode = 0x8
	opPing         opCode = 0x9
	opPong         opCode = 0xA
)

const (
	finBit  = byte(0x80)
	rsvMask = byte(0x70)
	opMask  = byte(0x0F)
	maskBit = byte(0x80)
	len7Bit = byte(0x7F)

	maxControlPayload = 125
)

func (op opCode) isControl() bool { return op&0x08 != 0 }

func (op opCode) valid() bool {
	switch op {
	case opContinuation, opText, opBinary, opClose, opPing, opPong:
		return true
	default:
		return false
	}
}

// errIncompleteFrame signals "not enough bytes buffered yet" from
// decodeFrameHeader; it is an internal control-flow signal, never returned
// from a public Connection method.
var errIncompleteFrame = errors.New("wsclient: incomplete frame header")

// frameHeader is the decoded form of one WebSocket frame header.
type frameHeader struct {
	fin        bool
	opcode     opCode
	masked     bool
	maskKey    [4]byte
	payloadLen int64
}

// decodeFrameHeader parses one frame header from the front of buf.
// It returns the header and the total number of bytes consumed by the
// header itself (not including the payload) on success, errIncompleteFrame
// if buf does not yet hold a complete header, or a *Error (KindProtocolError
// or KindFrameTooLarge) for a malformed header.
//
// This buffer-at-a-time shape (as opposed to reading from an io.Reader) is
// the same contract pepnova-9-go-websocket-server's parseFrames uses to
// walk a byte slice and report how much of it a frame consumed.
func decodeFrameHeader(buf []byte, maxFrameSize int64) (frameHeader, int, error) {
	if len(buf) < 2 {
		return frameHeader{}, 0, errIncompleteFrame
	}
	b0, b1 := buf[0], buf[1]

	if b0&rsvMask != 0 {
		return frameHeader{}, 0, newErr(KindProtocolError, "reserved bits set in frame header")
	}
	op := opCode(b0 & opMask)
	if !op.valid() {
		return frameHeader{}, 0, newErr(KindProtocolError, "invalid opcode 0x%X", byte(op))
	}

	fh := frameHeader{
		fin:    b0&finBit != 0,
		opcode: op,
		masked: b1&maskBit != 0,
	}
	// A WebSocket client MUST reject any frame the server masks: masking is
	// a client-to-server-only protection.
	if fh.masked {
		return frameHeader{}, 0, newErr(KindProtocolError, "server frame has MASK bit set")
	}

	pos := 2
	payloadLen := int64(b1 & len7Bit)
	switch payloadLen {
	case 126:
		if len(buf) < pos+2 {
			return frameHeader{}, 0, errIncompleteFrame
		}
		payloadLen = int64(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2
	case 127:
		if len(buf) < pos+8 {
			return frameHeader{}, 0, errIncompleteFrame
		}
		raw := binary.BigEndian.Uint64(buf[pos:])
		if raw > math.MaxInt64 {
			return frameHeader{}, 0, newErr(KindProtocolError, "payload length high bit set")
		}
		payloadLen = int64(raw)
		pos += 8
	}
	fh.payloadLen = payloadLen

	if op.isControl() && (!fh.fin || payloadLen > maxControlPayload) {
		return frameHeader{}, 0, newErr(KindProtocolError, "control frame fragmented or oversized (%d bytes)", payloadLen)
	}
	if payloadLen > maxFrameSize {
		return frameHeader{}, 0, &Error{Kind: KindFrameTooLarge, msg: "wsclient: declared payload length exceeds configured maximum"}
	}

	return fh, pos, nil
}

// frameLen returns the total number of bytes (header + payload) this frame
// occupies in the stream, given the header was decoded at consumed bytes.
func (fh frameHeader) frameLen(headerLen int) int64 {
	return int64(headerLen) + fh.payloadLen
}

// encodeFrame appends a fully masked client-to-server frame for (opcode,
// fin, payload) to dst and returns the extended slice. Every outgoing frame
// gets a fresh random 32-bit masking key, per spec section 4.2.
func encodeFrame(dst []byte, opcode opCode, fin bool, payload []byte) ([]byte, error) {
	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return dst, wrapErr(KindIO, err)
	}

	b0 := opcode & opMask
	if fin {
		b0 |= finBit
	}
	dst = append(dst, byte(b0))

	n := len(payload)
	switch {
	case n <= 125:
		dst = append(dst, maskBit|byte(n))
	case n <= math.MaxUint16:
		dst = append(dst, maskBit|126)
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(n))
		dst = append(dst, ext[:]...)
	default:
		dst = append(dst, maskBit|127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(n))
		dst = append(dst, ext[:]...)
	}

	dst = append(dst, key[:]...)

	start := len(dst)
	dst = append(dst, payload...)
	for i := 0; i < n; i++ {
		dst[start+i] ^= key[i%4]
	}
	return dst, nil
}

// unmaskInPlace XORs buf against a (possibly rotated) masking key, used when
// we must unmask a payload the decoder left untouched. The core never
// unmasks server payloads (servers never mask), but this is reused by tests
// exercising the codec symmetrically.
func unmaskInPlace(buf []byte, key [4]byte, keyOffset int) {
	for i := range buf {
		buf[i] ^= key[(keyOffset+i)%4]
	}
}
