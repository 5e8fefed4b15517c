//go:build unix

package tcp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// listenControl returns the socket control hook of the listener. It enables
// SO_REUSEADDR so a restarted server can bind while old connections linger in
// TIME_WAIT.
func listenControl(reuseAddr bool) func(network, address string, c syscall.RawConn) error {
	if !reuseAddr {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
