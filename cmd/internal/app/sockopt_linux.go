//go:build linux

package app

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// setTCPUserTimeout bounds how long transmitted data may stay unacknowledged before the kernel
// drops the connection, which unblocks a writer stuck on a dead peer.
func setTCPUserTimeout(c *net.TCPConn, d time.Duration) error {
	raw, err := c.SyscallConn()
	if err != nil {
		return err
	}

	var serr error
	if err := raw.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, int(d.Milliseconds()))
	}); err != nil {
		return err
	}
	return serr
}
