// Package presence is the source of truth for "is user X reachable right now".
package presence

import (
	"sync"

	"talkify/contract"
)

// Registry maps a user identifier to their single active connection handle.
// One handle per user: a new registration evicts the previous one
// (last write wins, single-device presence semantics).
//
// Registry is safe for concurrent use by many connection lifecycles.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.Connection
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]contract.Connection)}
}

// Register binds userID to conn, replacing any prior handle for that user.
func (r *Registry) Register(userID string, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = conn
}

// Unregister removes the binding only if conn is exactly the handle currently
// registered for userID. A stale disconnect of an older connection therefore
// cannot clobber a newer session's registration. Reports whether the binding
// was removed.
func (r *Registry) Unregister(userID string, conn contract.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[userID]
	if !ok || current != conn {
		return false
	}
	delete(r.sessions, userID)
	return true
}

// Lookup is a non-blocking read of the active handle for userID.
func (r *Registry) Lookup(userID string) (contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[userID]
	return conn, ok
}

// Snapshot returns the identifiers of every currently reachable user.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		users = append(users, userID)
	}
	return users
}
