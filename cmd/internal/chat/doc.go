// Package chat is the linechat session manager: a registry of named sessions, one reader and one
// writer goroutine per connection, and a reclaimer that tears sessions down once both directions
// have stopped.
//
// Termination protocol:
//   - Each session keeps a bit-set of stopped directions in an atomic word.
//   - A direction that stops sets its bit with a fetch-or and inspects the previous value.
//   - The direction that stops second hands the session to the reclaimer; the first one only
//     nudges its sibling (wakes the writer, or interrupts the reader's blocked read).
//   - The reclaimer joins both goroutines, drops the registry entry and closes the connection.
//
// A direction can never join itself, so teardown always happens on the reclaimer goroutine.
package chat
