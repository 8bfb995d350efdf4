package chat

import "time"

const (
	// Per-message write deadline. Zero disables it.
	defaultWriteTimeout = 10 * time.Second

	// Longest accepted inbound line, excluding the terminator.
	defaultMaxLineBytes = 64 << 10
	minMaxLineBytes     = 256

	// Accept retry backoff for transient listener errors.
	acceptBackoffMin = 5 * time.Millisecond
	acceptBackoffMax = 1 * time.Second
)
