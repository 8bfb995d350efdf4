package chat

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
)

// Termination state bits. A session is running while no bit is set.
const (
	readerStopped uint32 = 1 << iota
	writerStopped
	terminationRequested
)

type readerState int

const (
	awaitingName readerState = iota
	active
)

// host is the part of the Server a session talks to.
type host interface {
	ReserveName(s *Session, name string) bool
	Broadcast(sender *Session, msg *Message)
	Shutdown()
	enqueueReclaim(s *Session)
}

type sessionConfig struct {
	writeTimeout time.Duration
	maxLineBytes int
	outboxLimit  int
	now          func() time.Time
}

// Session is one connected client: a reader goroutine, a writer goroutine and an outbound FIFO.
type Session struct {
	id      string
	remote  string
	conn    net.Conn
	host    host
	log     *slog.Logger
	metrics *Metrics
	cfg     sessionConfig

	name atomic.Pointer[string]

	mu     sync.Mutex
	outbox *queue.Queue
	// one-slot; a pending token is never lost, extra tokens only cost a loop iteration.
	wake chan struct{}

	state atomic.Uint32
	wg    sync.WaitGroup
	done  chan struct{}
}

func newSession(id string, conn net.Conn, h host, log *slog.Logger, m *Metrics, cfg sessionConfig) *Session {
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	return &Session{
		id:      id,
		remote:  remote,
		conn:    conn,
		host:    h,
		log:     log.With("session_id", id, "remote", remote),
		metrics: m,
		cfg:     cfg,
		outbox:  queue.New(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// ID returns the session's ULID.
func (s *Session) ID() string { return s.id }

// Name returns the display name, or "" before login.
func (s *Session) Name() string {
	if p := s.name.Load(); p != nil {
		return *p
	}
	return ""
}

// RemoteAddr returns the peer address as reported at accept time.
func (s *Session) RemoteAddr() string { return s.remote }

// Done is closed once the reclaimer has joined both loops and closed the connection.
func (s *Session) Done() <-chan struct{} { return s.done }

// Info describes the session as of t.
func (s *Session) Info(t time.Time) SessionInfo {
	return SessionInfo{ID: s.id, Name: s.Name(), Remote: s.remote, At: t}
}

func (s *Session) start() {
	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
}

// activate binds the display name and queues the welcome.
// Called by the registry with its lock held, ahead of any broadcast that could include s.
func (s *Session) activate(name string) {
	s.name.Store(&name)
	s.Send(NewMessage(welcomeLine(name)))
}

// Send queues msg for the writer. It never blocks on the network.
// Messages sent after the writer has stopped are dropped.
func (s *Session) Send(msg *Message) {
	s.mu.Lock()
	if s.state.Load()&writerStopped != 0 {
		s.mu.Unlock()
		return
	}
	if limit := s.cfg.outboxLimit; limit > 0 && s.outbox.Length() >= limit {
		s.mu.Unlock()
		if s.state.Or(terminationRequested)&terminationRequested == 0 {
			s.metrics.SlowConsumers.Inc()
			s.log.Warn("session.outbox.full", "limit", limit)
		}
		s.RequestTermination()
		return
	}
	s.outbox.Add(msg)
	s.mu.Unlock()

	s.wakeWriter()
}

// RequestTermination asks both loops to stop. Queued output is still flushed. Idempotent.
func (s *Session) RequestTermination() {
	s.state.Or(terminationRequested)
	s.wakeWriter()
	s.interruptReader()
}

func (s *Session) terminating() bool {
	return s.state.Load()&terminationRequested != 0
}

func (s *Session) wakeWriter() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// interruptReader fails the reader's current or next blocking read.
func (s *Session) interruptReader() {
	_ = s.conn.SetReadDeadline(time.Now())
}

func (s *Session) readLoop() {
	defer s.wg.Done()

	err := s.read()
	s.logReaderStop(err)

	prev := s.state.Or(readerStopped)
	if prev&writerStopped != 0 {
		s.host.enqueueReclaim(s)
		return
	}
	s.wakeWriter()
}

func (s *Session) read() error {
	sc := bufio.NewScanner(s.conn)
	// room for the longest line plus "\r\n"
	limit := s.cfg.maxLineBytes + 2
	sc.Buffer(make([]byte, 0, min(4096, limit)), limit)
	sc.Split(scanLines)

	state := awaitingName
	s.Send(promptMessage)

	for sc.Scan() {
		if s.terminating() {
			return nil
		}
		line := sc.Text()

		switch state {
		case awaitingName:
			if line == "" {
				s.Send(promptMessage)
				continue
			}
			if !s.host.ReserveName(s, line) {
				s.Send(NewMessage(nameTakenLine(line)))
				s.Send(promptMessage)
				continue
			}
			state = active

		case active:
			switch line {
			case cmdQuit:
				return errQuit
			case cmdShutdown:
				s.host.Shutdown()
				return errShutdown
			}
			s.host.Broadcast(s, NewMessage(chatLine(s.cfg.now(), s.Name(), line)))
		}
	}
	return sc.Err()
}

func (s *Session) logReaderStop(err error) {
	switch {
	case err == nil:
		s.log.Debug("session.reader.stop", "reason", "eof", "name", s.Name())
	case errors.Is(err, errQuit):
		s.log.Info("session.reader.stop", "reason", "quit", "name", s.Name())
	case errors.Is(err, errShutdown):
		s.log.Info("session.reader.stop", "reason", "shutdown", "name", s.Name())
	case errors.Is(err, os.ErrDeadlineExceeded) && s.state.Load() != 0:
		s.log.Debug("session.reader.stop", "reason", "interrupted", "name", s.Name())
	case errors.Is(err, bufio.ErrTooLong):
		s.log.Warn("session.reader.stop", "reason", "line_too_long", "name", s.Name(), "max_bytes", s.cfg.maxLineBytes)
	default:
		s.log.Debug("session.reader.stop", "reason", "error", "name", s.Name(), "err", err)
	}
}

func (s *Session) writeLoop() {
	defer s.wg.Done()

	if err := s.write(); err != nil {
		s.log.Debug("session.writer.stop", "reason", "error", "name", s.Name(), "err", err)
	} else {
		s.log.Debug("session.writer.stop", "reason", "drained", "name", s.Name())
	}

	prev := s.state.Or(writerStopped)
	if prev&readerStopped != 0 {
		s.host.enqueueReclaim(s)
		return
	}
	s.interruptReader()
}

func (s *Session) write() error {
	for {
		if msg, ok := s.next(); ok {
			if err := s.writeMessage(msg); err != nil {
				return err
			}
			continue
		}
		if s.state.Load() != 0 {
			return nil
		}
		<-s.wake
	}
}

func (s *Session) next() (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outbox.Length() == 0 {
		return nil, false
	}
	return s.outbox.Remove().(*Message), true
}

func (s *Session) writeMessage(msg *Message) error {
	if d := s.cfg.writeTimeout; d > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(d)); err != nil {
			return err
		}
	}
	_, err := msg.WriteTo(s.conn)
	return err
}

// join waits for both loops. Only valid once both stop bits are set.
func (s *Session) join() {
	if st := s.state.Load(); st&(readerStopped|writerStopped) != readerStopped|writerStopped {
		panic("chat: join on a session that is still running")
	}
	s.wg.Wait()
}

func (s *Session) close() error {
	return s.conn.Close()
}

func (s *Session) markReclaimed() {
	close(s.done)
}

// scanLines splits on '\n' and strips one trailing '\r'.
// An unterminated fragment at EOF is not a line.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
	}
	if atEOF && len(data) > 0 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return 0, nil, nil
}
