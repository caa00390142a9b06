package presence

import (
	"sync"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// Tracker maps user identities to their live connection IDs. A user is
// online iff their connection set is non-empty; multiple simultaneous
// connections per user are expected (multi-device). State is process-local
// and lost on restart.
type Tracker struct {
	mu      sync.RWMutex
	users   map[string]*userEntry // userID -> entry
	byConn  map[string]string     // connID -> userID
}

type userEntry struct {
	identity chat.UserIdentity
	conns    map[string]bool
}

// NewTracker creates an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{
		users:  make(map[string]*userEntry),
		byConn: make(map[string]string),
	}
}

// Announce registers a connection under the user's connection set and
// reports whether the user just transitioned to online. Announcing the same
// connection twice is idempotent.
func (t *Tracker) Announce(connID string, identity chat.UserIdentity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-announce under a different identity moves the connection.
	if prev, ok := t.byConn[connID]; ok && prev != identity.ID {
		t.removeLocked(connID)
	}

	entry, ok := t.users[identity.ID]
	if !ok {
		entry = &userEntry{identity: identity, conns: make(map[string]bool)}
		t.users[identity.ID] = entry
	}

	wasOnline := len(entry.conns) > 0
	entry.conns[connID] = true
	t.byConn[connID] = identity.ID
	return !wasOnline
}

// Remove drops a connection and reports the identity that went offline, if
// the removed connection was the user's last. Unknown connections are a
// no-op.
func (t *Tracker) Remove(connID string) (chat.UserIdentity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(connID)
}

func (t *Tracker) removeLocked(connID string) (chat.UserIdentity, bool) {
	userID, ok := t.byConn[connID]
	if !ok {
		return chat.UserIdentity{}, false
	}
	delete(t.byConn, connID)

	entry := t.users[userID]
	delete(entry.conns, connID)
	if len(entry.conns) > 0 {
		return chat.UserIdentity{}, false
	}
	delete(t.users, userID)
	return entry.identity, true
}

// IsOnline reports whether the user has at least one live connection.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.users[userID]
	return ok && len(entry.conns) > 0
}

// Connections returns the connection IDs of a user's live sessions.
func (t *Tracker) Connections(userID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.users[userID]
	if !ok {
		return nil
	}
	conns := make([]string, 0, len(entry.conns))
	for id := range entry.conns {
		conns = append(conns, id)
	}
	return conns
}

// Identity resolves the announced identity behind a connection.
func (t *Tracker) Identity(connID string) (chat.UserIdentity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	userID, ok := t.byConn[connID]
	if !ok {
		return chat.UserIdentity{}, false
	}
	return t.users[userID].identity, true
}

// OnlineUsers returns the identities with at least one live connection.
func (t *Tracker) OnlineUsers() []chat.UserIdentity {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make([]chat.UserIdentity, 0, len(t.users))
	for _, entry := range t.users {
		users = append(users, entry.identity)
	}
	return users
}

// OnlineCount returns the number of online users.
func (t *Tracker) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}
