package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets the structured logger. Sessions log through children of it.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) error {
		if l == nil {
			return errors.New("chat: nil logger")
		}
		s.log = l
		return nil
	}
}

// WithMetrics sets the collectors updated by the server and its sessions.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) error {
		if m == nil {
			return errors.New("chat: nil metrics")
		}
		s.metrics = m
		return nil
	}
}

// WithObserver installs a lifecycle observer (e.g. the audit recorder).
func WithObserver(o LifecycleObserver) Option {
	return func(s *Server) error {
		if o == nil {
			return errors.New("chat: nil observer")
		}
		s.observer = o
		return nil
	}
}

// WithWriteTimeout sets the per-message write deadline. Zero disables it.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			return fmt.Errorf("chat: negative write timeout %s", d)
		}
		s.cfg.writeTimeout = d
		return nil
	}
}

// WithMaxLineBytes bounds the length of an inbound line.
func WithMaxLineBytes(n int) Option {
	return func(s *Server) error {
		if n < minMaxLineBytes {
			return fmt.Errorf("chat: max line bytes %d below minimum %d", n, minMaxLineBytes)
		}
		s.cfg.maxLineBytes = n
		return nil
	}
}

// WithOutboxLimit caps each session's outbound queue. A session whose queue is full when a message
// arrives drops it and is disconnected. Zero means unbounded.
func WithOutboxLimit(n int) Option {
	return func(s *Server) error {
		if n < 0 {
			return fmt.Errorf("chat: negative outbox limit %d", n)
		}
		s.cfg.outboxLimit = n
		return nil
	}
}

// WithClock overrides the time source used for chat timestamps and session ids.
func WithClock(now func() time.Time) Option {
	return func(s *Server) error {
		if now == nil {
			return errors.New("chat: nil clock")
		}
		s.cfg.now = now
		return nil
	}
}
