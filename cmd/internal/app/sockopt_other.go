//go:build !linux

package app

import (
	"net"
	"time"
)

// setTCPUserTimeout is a no-op where TCP_USER_TIMEOUT does not exist.
func setTCPUserTimeout(*net.TCPConn, time.Duration) error { return nil }
