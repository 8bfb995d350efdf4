package chat

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps display names to sessions and enforces name uniqueness.
//
// It holds lookup entries only. Session lifetime is owned by the Server's live set and the
// reclaimer; a Registry entry never keeps a session alive on its own.
type Registry struct {
	mu     sync.Mutex
	byName map[string]*Session
	// name captured at insertion; removal never consults the session itself.
	names map[*Session]string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Session),
		names:  make(map[*Session]string),
	}
}

// Reserve binds name to s if no live session holds it.
// bound, when non-nil, runs while the registry lock is still held, so nothing that snapshots the
// registry can observe s before bound has finished.
// Returns false without mutating state when the name is taken.
func (r *Registry) Reserve(s *Session, name string, bound func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[name]; taken {
		return false
	}
	if prev, ok := r.names[s]; ok {
		panic(fmt.Sprintf("chat: session %s already bound to %q", s.ID(), prev))
	}

	r.byName[name] = s
	r.names[s] = name
	if bound != nil {
		bound()
	}
	return true
}

// Remove drops the entry of s, if any, and reports whether one existed.
// Unnamed sessions have no entry.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.names[s]
	if !ok {
		return false
	}
	if owner := r.byName[name]; owner != s {
		panic(fmt.Sprintf("chat: registry entry %q does not belong to session %s", name, s.ID()))
	}

	delete(r.byName, name)
	delete(r.names, s)
	return true
}

func (r *Registry) lookup(name string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byName[name]
	return s, ok
}

// Snapshot returns the currently named sessions in no particular order.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	return out
}

// Names returns the currently reserved names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	r.mu.Unlock()

	sort.Strings(out)
	return out
}

func (r *Registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}
