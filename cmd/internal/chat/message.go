package chat

import (
	"io"
	"time"
)

// Wire-stable protocol text.
const (
	promptName = "What's your name?\n"

	cmdQuit     = "/quit"
	cmdShutdown = "/shutdown"

	// Microsecond local time, e.g. "2026-Oct-18 22:04:05.123456".
	timestampLayout = "2006-Jan-02 15:04:05.000000"
)

// Message is an immutable outbound payload.
// One Message is shared by pointer across every recipient's outbound queue.
type Message struct {
	b []byte
}

// NewMessage copies s into a new Message.
func NewMessage(s string) *Message {
	return &Message{b: []byte(s)}
}

func (m *Message) size() int { return len(m.b) }

func (m *Message) String() string { return string(m.b) }

// WriteTo writes the payload to w in a single Write call.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.b)
	return int64(n), err
}

var promptMessage = NewMessage(promptName)

func welcomeLine(name string) string {
	return "Welcome to the chat, " + name + "!\n"
}

func nameTakenLine(name string) string {
	return "Name '" + name + "' is already taken, invent another one.\n"
}

func chatLine(t time.Time, name, text string) string {
	return t.Format(timestampLayout) + " " + name + ": " + text + "\n"
}
