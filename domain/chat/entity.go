package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ChannelKind discriminates the three addressable destinations for messages.
type ChannelKind string

const (
	// ChannelDirect addresses an unordered pair of users.
	ChannelDirect ChannelKind = "direct"
	// ChannelGroup addresses a persisted roster of users.
	ChannelGroup ChannelKind = "group"
	// ChannelRoom addresses a freeform named room with no persisted roster.
	ChannelRoom ChannelKind = "room"
)

// Validation errors for channel references.
var (
	ErrUnknownChannelKind = errors.New("unknown channel kind")
	ErrMissingPeer        = errors.New("direct channel requires peer_id")
	ErrMissingGroup       = errors.New("group channel requires group_id")
	ErrMissingRoom        = errors.New("room channel requires name")
)

// ChannelRef identifies a message destination: a direct pair, a group
// roster, or a named room.
type ChannelRef struct {
	Kind    ChannelKind `json:"type"`
	PeerID  string      `json:"peer_id,omitempty"`
	GroupID string      `json:"group_id,omitempty"`
	Room    string      `json:"name,omitempty"`
}

// DirectRef returns a reference to the direct channel with the given peer.
func DirectRef(peerID string) ChannelRef {
	return ChannelRef{Kind: ChannelDirect, PeerID: peerID}
}

// GroupRef returns a reference to a group channel.
func GroupRef(groupID string) ChannelRef {
	return ChannelRef{Kind: ChannelGroup, GroupID: groupID}
}

// RoomRef returns a reference to a named room.
func RoomRef(name string) ChannelRef {
	return ChannelRef{Kind: ChannelRoom, Room: name}
}

// Validate checks that the reference carries the field its kind requires.
func (r ChannelRef) Validate() error {
	switch r.Kind {
	case ChannelDirect:
		if r.PeerID == "" {
			return ErrMissingPeer
		}
	case ChannelGroup:
		if r.GroupID == "" {
			return ErrMissingGroup
		}
	case ChannelRoom:
		if strings.TrimSpace(r.Room) == "" {
			return ErrMissingRoom
		}
	default:
		return ErrUnknownChannelKind
	}
	return nil
}

// Key returns the canonical channel key as seen by viewerID. Direct
// channels are keyed by the sorted user pair so both sides resolve to the
// same key.
func (r ChannelRef) Key(viewerID string) string {
	switch r.Kind {
	case ChannelDirect:
		a, b := viewerID, r.PeerID
		if a > b {
			a, b = b, a
		}
		return fmt.Sprintf("direct:%s:%s", a, b)
	case ChannelGroup:
		return "group:" + r.GroupID
	case ChannelRoom:
		return "room:" + r.Room
	}
	return ""
}

// UserIdentity is the stable identity resolved by the user directory.
// The relay references identities but never owns them.
type UserIdentity struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	OrganizationID string `json:"organization_id"`
}

// Message is a chat message. Created on send; only the delivered/read
// flags are ever mutated afterwards, and messages are never deleted.
type Message struct {
	ID              string     `json:"id"`
	Channel         ChannelRef `json:"channel"`
	SenderID        string     `json:"sender_id"`
	SenderName      string     `json:"sender_name"`
	Body            string     `json:"body"`
	CreatedAt       time.Time  `json:"created_at"`
	Delivered       bool       `json:"delivered"`
	Read            bool       `json:"read"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	ClientMessageID string     `json:"client_message_id,omitempty"`
}

// ReceiverID returns the direct-message receiver, or "" for group and room
// messages.
func (m *Message) ReceiverID() string {
	if m.Channel.Kind == ChannelDirect {
		return m.Channel.PeerID
	}
	return ""
}
