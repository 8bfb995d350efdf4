package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Server owns the registry, the live session set, the pending-removal queue and the reclaimer.
type Server struct {
	log      *slog.Logger
	metrics  *Metrics
	observer LifecycleObserver
	cfg      sessionConfig

	registry *Registry
	pending  *PendingQueue

	mu          sync.Mutex
	live        map[*Session]struct{}
	listeners   map[net.Listener]struct{}
	terminating bool

	// closed by Shutdown
	closing chan struct{}
	done    chan struct{}
}

// NewServer applies opts and starts the reclaimer.
func NewServer(opts ...Option) (*Server, error) {
	s := &Server{
		log:      slog.New(slog.DiscardHandler),
		observer: nopObserver{},
		cfg: sessionConfig{
			writeTimeout: defaultWriteTimeout,
			maxLineBytes: defaultMaxLineBytes,
			now:          time.Now,
		},
		registry:  NewRegistry(),
		pending:   NewPendingQueue(),
		live:      make(map[*Session]struct{}),
		listeners: make(map[net.Listener]struct{}),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}

	go s.reclaim()
	return s, nil
}

// Serve accepts connections on ln until Shutdown and attaches each one as a session.
// Transient accept errors are retried with backoff.
// It returns ErrServerClosed after Shutdown, or the accept error if ln was closed by someone else.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln, true) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.trackListener(ln, false)

	s.log.Info("server.serve", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isTerminating() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("chat: accept: %w", err)
			}

			if backoff == 0 {
				backoff = acceptBackoffMin
			} else {
				backoff = min(2*backoff, acceptBackoffMax)
			}
			s.log.Warn("server.accept.fail", "err", err, "retry_in", backoff)
			if !s.sleep(backoff) {
				return ErrServerClosed
			}
			continue
		}
		backoff = 0

		if _, err := s.Attach(conn); err != nil {
			if errors.Is(err, ErrServerClosed) {
				return ErrServerClosed
			}
			s.log.Error("server.attach.fail", "err", err)
		}
	}
}

// Attach starts a session on conn. The session owns conn from here on.
// After Shutdown the connection is closed and ErrServerClosed returned.
func (s *Server) Attach(conn net.Conn) (*Session, error) {
	id, err := NewSessionID(s.cfg.now())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("chat: session id: %w", err)
	}
	sess := newSession(id, conn, s, s.log, s.metrics, s.cfg)

	s.mu.Lock()
	if s.terminating {
		s.mu.Unlock()
		_ = conn.Close()
		return nil, ErrServerClosed
	}
	s.live[sess] = struct{}{}
	s.mu.Unlock()

	s.metrics.SessionsAccepted.Inc()
	s.metrics.SessionsActive.Inc()
	sess.log.Debug("session.attach")

	sess.start()
	return sess, nil
}

// ReserveName binds name to sess if it is free. The welcome line is queued before any broadcast
// can reach sess.
func (s *Server) ReserveName(sess *Session, name string) bool {
	if !s.registry.Reserve(sess, name, func() { sess.activate(name) }) {
		s.metrics.NameRejections.Inc()
		sess.log.Info("session.login.rejected", "name", name)
		return false
	}

	s.metrics.Logins.Inc()
	sess.log.Info("session.login", "name", name)
	s.observer.SessionJoined(sess.Info(s.cfg.now()))
	return true
}

// Broadcast queues msg on every named session except sender.
func (s *Server) Broadcast(sender *Session, msg *Message) {
	recipients := s.registry.Snapshot()

	n := 0
	for _, r := range recipients {
		if r == sender {
			continue
		}
		r.Send(msg)
		n++
	}

	s.metrics.Broadcasts.Inc()
	s.metrics.Deliveries.Add(float64(n))
}

// Remove drops the registry entry of sess, if any.
func (s *Server) Remove(sess *Session) {
	s.registry.Remove(sess)
}

// Names returns the sorted names of logged-in sessions.
func (s *Server) Names() []string {
	return s.registry.Names()
}

// LiveCount returns the number of sessions not yet reclaimed.
func (s *Server) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Shutdown stops accepting, asks every live session to terminate and lets the reclaimer exit once
// they are all gone. Idempotent; safe to call from a session's own reader.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.terminating {
		s.mu.Unlock()
		return
	}
	s.terminating = true
	close(s.closing)

	for sess := range s.live {
		sess.RequestTermination()
	}
	listeners := make([]net.Listener, 0, len(s.listeners))
	for ln := range s.listeners {
		listeners = append(listeners, ln)
	}
	idle := len(s.live) == 0
	s.mu.Unlock()

	s.log.Info("server.shutdown", "listeners", len(listeners))

	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Warn("server.listener.close.fail", "err", err)
		}
	}
	if idle {
		s.pending.Close()
	}
}

// Done is closed when the reclaimer exits, i.e. after Shutdown once every session is reclaimed.
func (s *Server) Done() <-chan struct{} { return s.done }

// Wait blocks until Done or ctx expiry.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits d, or less if Shutdown starts first. It reports false in the latter case.
func (s *Server) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-s.closing:
		return false
	}
}

func (s *Server) isTerminating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminating
}

func (s *Server) trackListener(ln net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.terminating {
			return false
		}
		s.listeners[ln] = struct{}{}
		return true
	}
	delete(s.listeners, ln)
	return true
}

func (s *Server) enqueueReclaim(sess *Session) {
	if !s.pending.Push(sess) {
		// Only reachable if the queue was closed with this session still live.
		panic(fmt.Sprintf("chat: pending queue closed before session %s was reclaimed", sess.ID()))
	}
}

func (s *Server) reclaim() {
	defer close(s.done)

	for {
		sess, ok := s.pending.Pop()
		if !ok {
			s.log.Info("server.reclaimer.stop")
			return
		}

		sess.join()
		s.Remove(sess)

		s.mu.Lock()
		if _, ok := s.live[sess]; !ok {
			s.mu.Unlock()
			panic(fmt.Sprintf("chat: reclaimed session %s is not live", sess.ID()))
		}
		delete(s.live, sess)
		finished := s.terminating && len(s.live) == 0
		s.mu.Unlock()

		if err := sess.close(); err != nil && !errors.Is(err, net.ErrClosed) {
			sess.log.Debug("session.close.fail", "err", err)
		}
		s.metrics.SessionsActive.Dec()
		s.metrics.SessionsReclaimed.Inc()
		if sess.Name() != "" {
			s.observer.SessionLeft(sess.Info(s.cfg.now()))
		}
		sess.log.Debug("session.reclaimed", "name", sess.Name())
		sess.markReclaimed()

		if finished {
			s.pending.Close()
			s.log.Info("server.reclaimer.stop")
			return
		}
	}
}
