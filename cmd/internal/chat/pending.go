package chat

import (
	"sync"

	"github.com/eapache/queue"
)

// PendingQueue hands sessions whose reader and writer have both stopped over to the reclaimer.
// Producers are sessions; the reclaimer is the sole consumer.
type PendingQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *queue.Queue
	closed bool
}

// NewPendingQueue constructs an empty, open queue.
func NewPendingQueue() *PendingQueue {
	p := &PendingQueue{items: queue.New()}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Push appends s. It reports false if the queue was already closed.
func (p *PendingQueue) Push(s *Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	p.items.Add(s)
	p.cond.Signal()
	return true
}

// Pop blocks until a session is available or the queue is closed and drained.
func (p *PendingQueue) Pop() (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.items.Length() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.items.Length() == 0 {
		return nil, false
	}
	return p.items.Remove().(*Session), true
}

// Close wakes the consumer; items already queued are still returned by Pop. Idempotent.
func (p *PendingQueue) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.cond.Broadcast()
}

// size returns the number of queued sessions.
func (p *PendingQueue) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.items.Length()
}
