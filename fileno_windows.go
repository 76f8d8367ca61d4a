//go:build windows

package wsclient

import "net"

// TODO: implement via golang.org/x/sys/windows + TCPConn.SyscallConn, the
// way fileno_unix.go does for unix.TCP_NODELAY/fd extraction. Left
// unimplemented for this exercise; see SPEC_FULL.md section 12.
func rawFileno(conn net.Conn) (int, error) {
	return -1, newErr(KindIO, "Fileno is not implemented on windows")
}
