//go:build !windows

package wsclient

import (
	"net"

	"golang.org/x/sys/unix"
)

// rawFileno extracts the raw integer file descriptor behind conn and
// applies one-shot socket tuning (TCP_NODELAY) at connect time. Grounded on
// momentics-hioload-ws's low-level client facades, which reach past
// net.TCPConn into golang.org/x/sys for socket-level control rather than
// relying on SetNoDelay alone.
func rawFileno(conn net.Conn) (int, error) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return -1, newErr(KindIO, "connection is not a *net.TCPConn")
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return -1, wrapErr(KindIO, err)
	}
	var fd int
	var ctrlErr error
	err = raw.Control(func(rawFD uintptr) {
		fd = int(rawFD)
		ctrlErr = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
	if err != nil {
		return -1, wrapErr(KindIO, err)
	}
	if ctrlErr != nil {
		// Non-fatal: Nagle tuning failing should not prevent use of the fd.
		return fd, nil
	}
	return fd, nil
}
