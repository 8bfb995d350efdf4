package app

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"
)

// Listen binds the chat TCP listener. With a positive TCPUserTimeout, accepted connections get
// TCP_USER_TIMEOUT set where the platform supports it.
func Listen(ctx context.Context, cfg Config, log *slog.Logger) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.ListenAddr())
	if err != nil {
		return nil, err
	}

	if cfg.TCPUserTimeout <= 0 {
		return ln, nil
	}
	return &userTimeoutListener{Listener: ln, timeout: cfg.TCPUserTimeout, log: log}, nil
}

type userTimeoutListener struct {
	net.Listener
	timeout time.Duration
	log     *slog.Logger
}

func (l *userTimeoutListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		if err := setTCPUserTimeout(tc, l.timeout); err != nil {
			l.log.Warn("listener.sockopt.fail", "opt", "TCP_USER_TIMEOUT", "err", err, "remote", c.RemoteAddr().String())
		}
	}
	return c, nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
