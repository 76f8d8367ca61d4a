package wsclient

import (
	"encoding/binary"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status is the lifecycle state of a Connection. See spec section 3 for the
// invariants each value carries.
type Status int

const (
	StatusConnecting Status = iota
	StatusOpen
	StatusClosingLocal  // we sent CLOSE, awaiting the peer's CLOSE
	StatusClosingRemote // peer sent CLOSE, we must echo
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "Connecting"
	case StatusOpen:
		return "Open"
	case StatusClosingLocal:
		return "ClosingLocal"
	case StatusClosingRemote:
		return "ClosingRemote"
	case StatusClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// FrameType identifies what kind of data Payload carries; Recv reports this
// for every surfaced frame (it never surfaces PING or PONG).
type FrameType int

const (
	Text FrameType = iota
	Binary
	Continuation
	Close
)

// Payload is a zero-copy view into the Connection's internal ring buffer,
// returned by Recv. It is valid only until ReleasePayload is called (or
// Close, which force-releases it and zeroes Data). At most one Payload may
// be outstanding per Connection.
type Payload struct {
	Type    FrameType
	Data    []byte
	IsFinal bool
	// CloseCode and CloseReason are populated only when Type == Close.
	CloseCode   uint16
	CloseReason string
}

// Stats is a snapshot of per-connection counters, exposed for the host
// program's own observability — not part of the wire protocol. Mirrors
// momentics-hioload-ws's GetStats(), realized as a typed struct rather than
// a map[string]int64.
type Stats struct {
	BytesReceived  int64
	BytesSent      int64
	FramesReceived int64
	FramesSent     int64
}

// Connection is a single client-side WebSocket connection. Operations are
// not safe for concurrent use by multiple goroutines; exactly one
// goroutine may call them at a time (spec section 5).
type Connection struct {
	conn   net.Conn
	cfg    Config
	status Status
	id     uuid.UUID
	log    zerolog.Logger

	in  *ringBuffer
	out []byte // reusable scratch buffer for encoding outgoing frames

	reasm reassemblyContext

	pinned       bool
	pinOffset    int
	pinLen       int
	pinAdvanceTo int

	// closedNormally is set once a CLOSE exchange (ours or the peer's)
	// completes cleanly, and consumed by the next Recv call so it reports
	// KindConnectionClosedNormally exactly once before settling on
	// ErrNotOpen for any call after that.
	closedNormally bool

	bytesReceived  int64
	bytesSent      int64
	framesReceived int64
	framesSent     int64
}

// Connect performs the opening handshake against uri and returns an Open
// Connection, or an error from the taxonomy in spec section 7. On any
// failure the socket is closed and no Connection is returned.
func Connect(uri string, cfg Config) (*Connection, error) {
	cfg = cfg.withDefaults()

	parsed, err := parseWSURI(uri)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(cfg.HandshakeTimeout)
	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.Dial("tcp", parsed.hostport)
	if err != nil {
		return nil, wrapErr(KindIO, err)
	}

	id := uuid.New()
	log := cfg.Logger.With().Str("conn_id", id.String()).Str("host", parsed.host).Logger()

	// The upgrade exchange gets whatever is left of the same budget.
	hsCfg := cfg
	hsCfg.HandshakeTimeout = time.Until(deadline)

	log.Debug().Msg("sending handshake request")
	leftover, err := clientHandshake(conn, parsed, hsCfg)
	if err != nil {
		log.Debug().Err(err).Msg("handshake failed")
		conn.Close()
		return nil, err
	}
	log.Debug().Msg("handshake accepted")

	if _, err := rawFileno(conn); err != nil {
		log.Debug().Err(err).Msg("socket tuning unavailable")
	}

	c := &Connection{
		conn:   conn,
		cfg:    cfg,
		status: StatusOpen,
		id:     id,
		log:    log,
		in:     newRingBuffer(int(cfg.MaxFrameSize) + maxFrameHeaderSize),
		out:    make([]byte, 0, 256),
	}
	if len(leftover) > 0 {
		c.in.growToFit(len(leftover))
		copy(c.in.buf[c.in.tail:], leftover)
		c.in.tail += len(leftover)
	}
	return c, nil
}

// Fileno returns a stable identifier for the underlying socket descriptor,
// suitable for external readiness polling (epoll/kqueue/select). It is
// POSIX-only; see SPEC_FULL.md section 12.
func (c *Connection) Fileno() (int, error) {
	return rawFileno(c.conn)
}

// Stats returns a snapshot of this connection's byte/frame counters.
func (c *Connection) Stats() Stats {
	return Stats{
		BytesReceived:  atomic.LoadInt64(&c.bytesReceived),
		BytesSent:      atomic.LoadInt64(&c.bytesSent),
		FramesReceived: atomic.LoadInt64(&c.framesReceived),
		FramesSent:     atomic.LoadInt64(&c.framesSent),
	}
}

// SendText sends a single TEXT frame with FIN=1. Requires Status == Open
// and data to be valid UTF-8.
func (c *Connection) SendText(data []byte) error {
	if c.status != StatusOpen {
		return ErrNotOpen
	}
	var v utf8Validator
	if !v.push(data) || !v.finish() {
		return newErr(KindProtocolError, "send_text: payload is not valid UTF-8")
	}
	return c.sendFrame(opText, true, data)
}

// SendBinary sends a single BINARY frame with FIN=1. Requires Status == Open.
func (c *Connection) SendBinary(data []byte) error {
	if c.status != StatusOpen {
		return ErrNotOpen
	}
	return c.sendFrame(opBinary, true, data)
}

func (c *Connection) sendFrame(op opCode, fin bool, payload []byte) error {
	c.out = c.out[:0]
	var err error
	c.out, err = encodeFrame(c.out, op, fin, payload)
	if err != nil {
		return err
	}
	if err := c.writeAll(c.out); err != nil {
		return err
	}
	atomic.AddInt64(&c.framesSent, 1)
	atomic.AddInt64(&c.bytesSent, int64(len(payload)))
	return nil
}

// writeAll writes buf to the socket in one Write call per spec section 4.2.
// A partial write's remainder is retried with a short internal deadline;
// if it still cannot be completed, WouldBlock is returned rather than
// buffering an unbounded backlog (spec section 5's documented choice).
func (c *Connection) writeAll(buf []byte) error {
	n, err := c.conn.Write(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return ErrWouldBlock
		}
		return wrapErr(KindIO, err)
	}
	if n == len(buf) {
		return nil
	}
	// Partial write: retry the remainder with a short deadline rather than
	// growing an outbound backlog.
	remaining := buf[n:]
	deadline := time.Now().Add(100 * time.Millisecond)
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return wrapErr(KindIO, err)
	}
	defer c.conn.SetWriteDeadline(time.Time{})
	for len(remaining) > 0 {
		n, err := c.conn.Write(remaining)
		remaining = remaining[n:]
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return ErrWouldBlock
			}
			return wrapErr(KindIO, err)
		}
	}
	return nil
}

// ReleasePayload releases the pin taken by the most recent Recv. Safe to
// call when no pin is outstanding (a no-op).
func (c *Connection) ReleasePayload() {
	if !c.pinned {
		return
	}
	if c.pinAdvanceTo > 0 {
		c.in.Advance(c.pinAdvanceTo - c.in.head)
	}
	c.pinned = false
	c.pinOffset, c.pinLen, c.pinAdvanceTo = 0, 0, 0
}

// Recv waits up to timeoutMs for a complete data frame. 0 means strictly
// non-blocking (check once and return); a negative value blocks
// indefinitely. Returns (nil, nil) on timeout with no frame available.
func (c *Connection) Recv(timeoutMs int) (*Payload, error) {
	if c.pinned {
		return nil, ErrPinOutstanding
	}
	if c.status == StatusClosed {
		if c.closedNormally {
			c.closedNormally = false
			return nil, ErrConnectionClosedNormally
		}
		return nil, ErrNotOpen
	}

	deadline, hasDeadline := recvDeadline(timeoutMs)

	for {
		if p, err, ok := c.tryDeliver(); ok {
			return p, err
		}

		readTimeout := time.Duration(0)
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, nil
			}
			readTimeout = remaining
		}
		if err := c.setReadTimeout(readTimeout, hasDeadline); err != nil {
			return nil, wrapErr(KindIO, err)
		}

		n, err := c.in.Fill(c.conn)
		if n > 0 {
			atomic.AddInt64(&c.bytesReceived, int64(n))
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if hasDeadline {
					continue // loop will observe the deadline has passed
				}
				return nil, nil
			}
			if err == io.EOF {
				c.status = StatusClosed
				return nil, ErrConnectionClosedAbnormally
			}
			return nil, wrapErr(KindIO, err)
		}
	}
}

func recvDeadline(timeoutMs int) (time.Time, bool) {
	switch {
	case timeoutMs < 0:
		return time.Time{}, false
	case timeoutMs == 0:
		return time.Now(), true
	default:
		return time.Now().Add(time.Duration(timeoutMs) * time.Millisecond), true
	}
}

func (c *Connection) setReadTimeout(d time.Duration, hasDeadline bool) error {
	if !hasDeadline {
		return c.conn.SetReadDeadline(time.Time{})
	}
	if d <= 0 {
		// Strictly non-blocking poll: a deadline already in the past makes
		// the next Read return immediately with a timeout error if nothing
		// is pending.
		return c.conn.SetReadDeadline(time.Now())
	}
	return c.conn.SetReadDeadline(time.Now().Add(d))
}

// tryDeliver attempts to decode and process exactly one frame already
// buffered in c.in. ok is false if no complete frame is available yet (the
// caller should read more). When ok is true, p/err is the result to return
// from Recv (p and err may both be nil, meaning "processed a control frame,
// keep looping without surfacing anything yet" — handled internally by
// tryDeliver looping itself, so callers always get a terminal result).
func (c *Connection) tryDeliver() (*Payload, error, bool) {
	for {
		unread := c.in.Unread()
		fh, hlen, err := decodeFrameHeader(unread, c.cfg.MaxFrameSize)
		if err == errIncompleteFrame {
			return nil, nil, false
		}
		if err != nil {
			p, rerr := c.failProtocol(err)
			return p, rerr, true
		}
		total := fh.frameLen(hlen)
		if int64(len(unread)) < total {
			return nil, nil, false
		}

		payload := unread[hlen:total]
		atomic.AddInt64(&c.framesReceived, 1)

		p, err, terminal := c.processFrame(fh, payload, hlen, int(total))
		if terminal {
			return p, err, true
		}
		// Control frame handled inline (PING/PONG);
		// advance past it and keep looking for a data frame.
	}
}

// processFrame applies the per-opcode rules of spec section 4.3 to one
// already-fully-buffered frame. terminal is true when Recv should return
// immediately (a data frame was surfaced, a protocol error occurred, or the
// CLOSE handshake completed); terminal is false when the frame was a
// control frame handled transparently and the caller should keep scanning.
func (c *Connection) processFrame(fh frameHeader, payload []byte, hlen, total int) (p *Payload, err error, terminal bool) {
	switch fh.opcode {
	case opPing:
		c.log.Debug().Int("len", len(payload)).Msg("ping received, sending pong")
		if werr := c.sendFrame(opPong, true, payload); werr != nil {
			c.in.Advance(total)
			return nil, werr, true
		}
		c.in.Advance(total)
		return nil, nil, false

	case opPong:
		c.in.Advance(total)
		return nil, nil, false

	case opClose:
		return c.handleClose(payload, total)

	case opText, opBinary:
		if c.reasm.inProgress {
			c.in.Advance(total)
			p, perr := c.failProtocol(newErr(KindProtocolError, "data frame while a fragmented message is in progress"))
			return p, perr, true
		}
		return c.deliverData(fh, payload, hlen, total)

	case opContinuation:
		if !c.reasm.inProgress {
			c.in.Advance(total)
			p, perr := c.failProtocol(newErr(KindProtocolError, "continuation frame with no message in progress"))
			return p, perr, true
		}
		return c.deliverData(fh, payload, hlen, total)

	default:
		c.in.Advance(total)
		p, perr := c.failProtocol(newErr(KindProtocolError, "unhandled opcode 0x%X", byte(fh.opcode)))
		return p, perr, true
	}
}

// deliverData surfaces one TEXT/BINARY/CONTINUATION fragment as a pinned,
// zero-copy Payload, per spec's fragmented-message delivery policy: each
// fragment is surfaced individually, not concatenated.
func (c *Connection) deliverData(fh frameHeader, payload []byte, hlen, total int) (*Payload, error, bool) {
	var frameType FrameType
	var isText bool

	if fh.opcode == opContinuation {
		frameType = Continuation
		isText = c.reasm.opcode == opText
	} else {
		isText = fh.opcode == opText
		if isText {
			frameType = Text
		} else {
			frameType = Binary
		}
		c.reasm.begin(fh.opcode)
	}

	if isText {
		if !c.reasm.utf8.push(payload) {
			c.in.Advance(total)
			c.reasm.reset()
			return c.failProtocolClose(KindProtocolError, 1007, "invalid UTF-8 in text message")
		}
		if fh.fin && !c.reasm.utf8.finish() {
			c.in.Advance(total)
			c.reasm.reset()
			return c.failProtocolClose(KindProtocolError, 1007, "truncated UTF-8 at end of text message")
		}
	}

	if fh.fin {
		c.reasm.reset()
	}

	c.pinned = true
	c.pinOffset = c.in.head + hlen
	c.pinLen = len(payload)

	// Note: Advance happens lazily on the *next* tryDeliver/Recv entry via
	// the pin check preventing any compaction — the payload slice the
	// caller holds aliases c.in.buf directly, so we cannot Advance (which
	// would permit Compact) until ReleasePayload. We instead snapshot the
	// frame's end offset and defer the Advance to ReleasePayload.
	c.pinAdvanceTo = c.in.head + total

	return &Payload{
		Type:    frameType,
		Data:    payload,
		IsFinal: fh.fin,
	}, nil, true
}

// handleClose implements spec's CLOSE transitions: when we were Open, echo
// the peer's status code and move straight to Closed; when we were already
// ClosingLocal, finalize. The socket is neither half-closed nor drained to
// EOF here; it stays open until Close is called.
func (c *Connection) handleClose(payload []byte, total int) (*Payload, error, bool) {
	var code uint16 = 1005
	reason := ""
	if len(payload) >= 2 {
		code = binary.BigEndian.Uint16(payload[:2])
		reason = string(payload[2:])
	}

	switch c.status {
	case StatusOpen:
		c.status = StatusClosingRemote
		c.log.Debug().Uint16("code", code).Msg("peer closed, echoing")
		c.sendFrame(opClose, true, payload[:minInt(len(payload), 2)])
		c.status = StatusClosed
		c.closedNormally = true
	case StatusClosingLocal:
		c.status = StatusClosed
		c.closedNormally = true
	default:
		c.status = StatusClosed
	}

	// CloseCode/CloseReason are already copied out; nothing in the ring
	// buffer is aliased, so no pin is needed.
	c.in.Advance(total)

	return &Payload{
		Type:        Close,
		IsFinal:     true,
		CloseCode:   code,
		CloseReason: reason,
	}, nil, true
}

func (c *Connection) failProtocol(err error) (*Payload, error) {
	return c.failProtocolErr(1002, err)
}

func (c *Connection) failProtocolClose(kind Kind, code uint16, format string) (*Payload, error, bool) {
	p, err := c.failProtocolErr(code, newErr(kind, format))
	return p, err, true
}

func (c *Connection) failProtocolErr(code uint16, err error) (*Payload, error) {
	c.log.Debug().Err(err).Uint16("close_code", code).Msg("protocol error, closing")
	c.sendClose(code, "")
	c.status = StatusClosed
	return nil, withCloseCode(err, code)
}

// SendClose emits a CLOSE frame with code (default 1000 when zero) and an
// optional UTF-8 reason (truncated to 123 bytes), transitioning
// Open -> ClosingLocal.
func (c *Connection) SendClose(code uint16, reason string) error {
	if c.status != StatusOpen {
		return ErrNotOpen
	}
	if code == 0 {
		code = 1000
	}
	if err := c.sendClose(code, reason); err != nil {
		return err
	}
	c.status = StatusClosingLocal
	return nil
}

func (c *Connection) sendClose(code uint16, reason string) error {
	if len(reason) > 123 {
		reason = reason[:123]
	}
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, code)
	copy(payload[2:], reason)
	return c.sendFrame(opClose, true, payload)
}

// Close performs a best-effort CLOSE (if still Open), shuts down the
// socket, transitions to Closed, and force-releases any outstanding pin
// (zeroing the caller's view, since the backing buffer is about to be torn
// down). Idempotent.
func (c *Connection) Close() error {
	if c.status == StatusClosed {
		c.forceReleasePin()
		_ = c.conn.Close()
		return nil
	}
	if c.status == StatusOpen {
		_ = c.sendClose(1000, "")
	}
	c.status = StatusClosed
	c.forceReleasePin()
	return c.conn.Close()
}

func (c *Connection) forceReleasePin() {
	if !c.pinned {
		return
	}
	if c.pinOffset >= 0 && c.pinOffset+c.pinLen <= len(c.in.buf) {
		for i := c.pinOffset; i < c.pinOffset+c.pinLen; i++ {
			c.in.buf[i] = 0
		}
	}
	c.pinned = false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
