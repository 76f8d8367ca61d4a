// Package wsclient implements a low-overhead RFC 6455 WebSocket client.
//
// The connection's receive path is zero-copy: Recv returns a Payload that
// borrows directly from the connection's internal ring buffer. The borrow
// must be released with ReleasePayload before the next Recv call is
// accepted. There is no background goroutine; every operation is driven by
// the caller, with an internal timeout where spec.md calls for one.
package wsclient
