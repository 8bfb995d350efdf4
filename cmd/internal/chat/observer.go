package chat

import "time"

// SessionInfo is a point-in-time description of a session.
type SessionInfo struct {
	ID     string
	Name   string
	Remote string
	At     time.Time
}

// LifecycleObserver is told when a session logs in and when a named session is reclaimed.
// Implementations must not block; they are called from the reader and reclaimer goroutines.
type LifecycleObserver interface {
	SessionJoined(SessionInfo)
	SessionLeft(SessionInfo)
}

type nopObserver struct{}

func (nopObserver) SessionJoined(SessionInfo) {}
func (nopObserver) SessionLeft(SessionInfo)   {}
