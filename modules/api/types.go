package api

import (
	chat "github.com/example/team-chat-demo/domain/chat"
	"github.com/example/team-chat-demo/modules/directory"
)

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and the authenticated identity.
type LoginResponse struct {
	Token string            `json:"token"`
	User  chat.UserIdentity `json:"user"`
}

// ContactsResponse lists the caller's organization contacts with their
// current presence.
type ContactsResponse struct {
	Contacts []Contact `json:"contacts"`
	Total    int       `json:"total"`
}

// Contact is one entry of the contact list.
type Contact struct {
	chat.UserIdentity
	Online bool `json:"online"`
}

// CreateGroupRequest is the body of POST /api/v1/groups.
type CreateGroupRequest struct {
	Name string `json:"name"`
}

// GroupsResponse lists the caller's groups.
type GroupsResponse struct {
	Groups []directory.GroupSummary `json:"groups"`
	Total  int                      `json:"total"`
}

// GroupMembersResponse lists a group's roster.
type GroupMembersResponse struct {
	Members []chat.UserIdentity `json:"members"`
	Admins  []string            `json:"admins"`
	Total   int                 `json:"total"`
}

// MessagesResponse is one page of channel history.
type MessagesResponse struct {
	Messages []chat.Message `json:"messages"`
	Total    int            `json:"total"`
}

// MarkReadResponse reports how many messages a bulk read affected.
type MarkReadResponse struct {
	Affected int64 `json:"affected"`
}

// UnreadResponse maps sender IDs to unread direct-message counts.
type UnreadResponse struct {
	Counts map[string]int64 `json:"counts"`
}
