package relay

import (
	"sync"
	"time"
)

// typingTTL is how long a typing mark stays valid without renewal. The
// indicator is advisory; stale marks are pruned lazily on access.
const typingTTL = 2 * time.Second

// TypingTracker remembers who is typing in which channel. Marks expire
// after typingTTL so a client that vanishes mid-keystroke does not leave a
// stuck indicator.
type TypingTracker struct {
	mu      sync.Mutex
	typists map[string]map[string]time.Time // channelKey -> userID -> expiry
	now     func() time.Time
}

// NewTypingTracker creates an empty typing tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		typists: make(map[string]map[string]time.Time),
		now:     time.Now,
	}
}

// Mark records that a user is typing in a channel and reports whether this
// is a fresh mark. Renewing an unexpired mark extends it and returns false,
// so callers can suppress repeat broadcasts.
func (t *TypingTracker) Mark(channelKey, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	channel, ok := t.typists[channelKey]
	if !ok {
		channel = make(map[string]time.Time)
		t.typists[channelKey] = channel
	}

	expiry, present := channel[userID]
	channel[userID] = now.Add(typingTTL)
	return !present || now.After(expiry)
}

// Clear removes a user's typing mark and reports whether one was active.
func (t *TypingTracker) Clear(channelKey, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	channel, ok := t.typists[channelKey]
	if !ok {
		return false
	}
	expiry, present := channel[userID]
	if !present {
		return false
	}
	delete(channel, userID)
	if len(channel) == 0 {
		delete(t.typists, channelKey)
	}
	return t.now().Before(expiry)
}

// ClearUser removes all typing marks left by one user, across channels.
// Used when a user's last connection drops.
func (t *TypingTracker) ClearUser(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, channel := range t.typists {
		delete(channel, userID)
		if len(channel) == 0 {
			delete(t.typists, key)
		}
	}
}

// Active returns the users currently typing in a channel, pruning expired
// marks as it goes.
func (t *TypingTracker) Active(channelKey string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	channel, ok := t.typists[channelKey]
	if !ok {
		return nil
	}

	now := t.now()
	var users []string
	for userID, expiry := range channel {
		if now.After(expiry) {
			delete(channel, userID)
			continue
		}
		users = append(users, userID)
	}
	if len(channel) == 0 {
		delete(t.typists, channelKey)
	}
	return users
}
