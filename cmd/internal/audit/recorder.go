package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"linechat/cmd/internal/chat"
)

const (
	defaultRecorderBuffer = 256
	recorderWriteTimeout  = 3 * time.Second
)

// Recorder writes lifecycle events to a Store on its own goroutine.
// It implements chat.LifecycleObserver; callbacks never block, and events that do not fit in the
// buffer are dropped and counted.
type Recorder struct {
	log   *slog.Logger
	store Store

	mu     sync.RWMutex
	closed bool
	events chan Event

	dropped atomic.Uint64
	done    chan struct{}
}

var _ chat.LifecycleObserver = (*Recorder)(nil)

// NewRecorder starts a recorder in front of store. buffer <= 0 selects the default (256).
func NewRecorder(log *slog.Logger, store Store, buffer int) *Recorder {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if buffer <= 0 {
		buffer = defaultRecorderBuffer
	}

	r := &Recorder{
		log:    log,
		store:  store,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// SessionJoined records a join.
func (r *Recorder) SessionJoined(info chat.SessionInfo) { r.enqueue(KindJoin, info) }

// SessionLeft records a leave.
func (r *Recorder) SessionLeft(info chat.SessionInfo) { r.enqueue(KindLeave, info) }

// Recent returns the newest events from the store.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	return r.store.Recent(ctx, limit)
}

// Dropped reports how many events were discarded because the buffer was full or the recorder closed.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Close stops accepting events and waits for queued ones to be written, or for ctx.
// It does not close the store.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) enqueue(kind Kind, info chat.SessionInfo) {
	at := info.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	id, err := NewEventID(at)
	if err != nil {
		r.log.Error("audit.event_id.fail", "err", err)
		return
	}
	ev := Event{
		ID:        id,
		Kind:      kind,
		SessionID: info.ID,
		Name:      info.Name,
		Remote:    info.Remote,
		At:        at,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
		r.log.Warn("audit.event.dropped", "kind", string(kind), "session_id", info.ID)
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	for ev := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
		err := r.store.Append(ctx, ev)
		cancel()
		if err != nil {
			r.log.Error("audit.append.fail", "err", err, "kind", string(ev.Kind), "session_id", ev.SessionID)
		}
	}
}
