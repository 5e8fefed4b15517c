//go:build !unix

package tcp

import "syscall"

// listenControl returns no hook on platforms without unix socket options
func listenControl(reuseAddr bool) func(network, address string, c syscall.RawConn) error {
	return nil
}
