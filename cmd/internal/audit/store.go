// Package audit keeps a ledger of chat session lifecycle events: one join when a session logs in,
// one leave when a named session is reclaimed.
package audit

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind is the event type.
type Kind string

const (
	KindJoin  Kind = "join"
	KindLeave Kind = "leave"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// Event is one ledger row.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	Remote    string    `json:"remote,omitempty"`
	At        time.Time `json:"at"`
}

// Store persists and queries ledger events.
//
// Requirements:
//   - Append is idempotent per Event.ID
//   - Recent returns newest first
type Store interface {
	Append(ctx context.Context, ev Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
	Close() error
}

// NewEventID returns a ULID whose timestamp is at.
func NewEventID(at time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(at), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}
