package wsclient

import "fmt"

// Kind classifies the distinct error conditions a Connection operation can
// report. See spec section 7 (error taxonomy).
type Kind int

const (
	// KindConfigInvalid: URI scheme/host malformed, or a config parameter
	// out of range.
	KindConfigInvalid Kind = iota
	// KindIO: underlying socket error (connect failed, read/write failed,
	// unexpected EOF during the handshake). EOF in Recv is reported as
	// KindConnectionClosedAbnormally instead.
	KindIO
	// KindHandshakeTimeout: the opening handshake did not complete within
	// Config.HandshakeTimeout.
	KindHandshakeTimeout
	// KindHandshakeMalformed: the response could not be parsed, or
	// exceeded the header size guard.
	KindHandshakeMalformed
	// KindHandshakeRejected: the response status line was not 101.
	KindHandshakeRejected
	// KindHandshakeAcceptMismatch: Sec-WebSocket-Accept did not match the
	// expected hash of the nonce this client sent.
	KindHandshakeAcceptMismatch
	// KindProtocolError: masked server frame, reserved bits set, bad
	// opcode, fragmentation rule violation, oversize control frame, or
	// invalid UTF-8 in a TEXT message.
	KindProtocolError
	// KindFrameTooLarge: declared payload length exceeds Config.MaxFrameSize.
	KindFrameTooLarge
	// KindPinOutstanding: Recv was called while a payload is still pinned.
	KindPinOutstanding
	// KindWouldBlock: a non-blocking send could not be fully written.
	KindWouldBlock
	// KindConnectionClosedAbnormally: EOF or transport drop without a CLOSE
	// handshake.
	KindConnectionClosedAbnormally
	// KindConnectionClosedNormally: surfaced once after a CLOSE exchange
	// completes.
	KindConnectionClosedNormally
	// KindNotOpen: a send was attempted on a Connection that is not Open, or
	// Recv on one that is Closed.
	KindNotOpen
)

func (k Kind) String() string {
	switch k {
	case KindConfigInvalid:
		return "ConfigInvalid"
	case KindIO:
		return "Io"
	case KindHandshakeTimeout:
		return "HandshakeTimeout"
	case KindHandshakeMalformed:
		return "HandshakeMalformed"
	case KindHandshakeRejected:
		return "HandshakeRejected"
	case KindHandshakeAcceptMismatch:
		return "HandshakeAcceptMismatch"
	case KindProtocolError:
		return "ProtocolError"
	case KindFrameTooLarge:
		return "FrameTooLarge"
	case KindPinOutstanding:
		return "PinOutstanding"
	case KindWouldBlock:
		return "WouldBlock"
	case KindConnectionClosedAbnormally:
		return "ConnectionClosedAbnormally"
	case KindConnectionClosedNormally:
		return "ConnectionClosedNormally"
	case KindNotOpen:
		return "NotOpen"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the single error type returned by every Connection operation.
// Use errors.Is(err, wsclient.ErrPinOutstanding) (and the other sentinels
// below) to check for a specific Kind, or inspect Err.Kind directly.
type Error struct {
	Kind Kind
	// CloseCode is set when this error triggers (or reflects) an outgoing
	// or incoming CLOSE frame; zero when not applicable.
	CloseCode uint16
	// Err is the underlying cause, if any (an *os.SyscallError, io.EOF,
	// a parse error, ...). May be nil.
	Err error
	msg string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if e.Err != nil {
		return fmt.Sprintf("wsclient: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("wsclient: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, which lets
// callers compare against the exported sentinels below via errors.Is
// regardless of the wrapped cause or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: "wsclient: " + fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

func wrapClose(kind Kind, code uint16, cause error) *Error {
	return &Error{Kind: kind, CloseCode: code, Err: cause}
}

// withCloseCode returns err annotated with the CLOSE code that was (or is
// about to be) written to the wire alongside it. If err is already an *Error
// its Kind/message/cause are preserved; otherwise it's wrapped as a
// KindProtocolError via wrapClose.
func withCloseCode(err error, code uint16) *Error {
	if e, ok := err.(*Error); ok {
		return &Error{Kind: e.Kind, CloseCode: code, Err: e.Err, msg: e.msg}
	}
	return wrapClose(KindProtocolError, code, err)
}

// Sentinel errors for use with errors.Is. Each carries only a Kind; compare
// with errors.Is(err, wsclient.ErrPinOutstanding), not with ==.
var (
	ErrConfigInvalid              = &Error{Kind: KindConfigInvalid}
	ErrIO                         = &Error{Kind: KindIO}
	ErrHandshakeTimeout           = &Error{Kind: KindHandshakeTimeout}
	ErrHandshakeMalformed         = &Error{Kind: KindHandshakeMalformed}
	ErrHandshakeRejected          = &Error{Kind: KindHandshakeRejected}
	ErrHandshakeAcceptMismatch    = &Error{Kind: KindHandshakeAcceptMismatch}
	ErrProtocolError              = &Error{Kind: KindProtocolError}
	ErrFrameTooLarge              = &Error{Kind: KindFrameTooLarge}
	ErrPinOutstanding             = &Error{Kind: KindPinOutstanding}
	ErrWouldBlock                 = &Error{Kind: KindWouldBlock}
	ErrConnectionClosedAbnormally = &Error{Kind: KindConnectionClosedAbnormally}
	ErrConnectionClosedNormally   = &Error{Kind: KindConnectionClosedNormally}
	ErrNotOpen                    = &Error{Kind: KindNotOpen}
)
