package chat

import "errors"

var (
	// ErrServerClosed is returned by Serve and Attach once Shutdown has been called.
	ErrServerClosed = errors.New("chat: server closed")

	// errQuit and errShutdown end a reader loop on purpose; they are never surfaced to callers.
	errQuit     = errors.New("chat: client quit")
	errShutdown = errors.New("chat: client requested shutdown")
)
