package directory

import (
	"time"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// ResolveTokenRequest is the request for resolving an access token.
type ResolveTokenRequest struct {
	Token string `json:"token"`
}

// ResolveTokenResponse carries the resolved identity, or an error string.
type ResolveTokenResponse struct {
	Valid    bool              `json:"valid"`
	Identity chat.UserIdentity `json:"identity,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// GetUserRequest is the request for looking up a user by ID.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse carries a resolved identity.
type GetUserResponse struct {
	Found    bool              `json:"found"`
	Identity chat.UserIdentity `json:"identity,omitempty"`
}

// ListContactsRequest is the request for listing a user's contacts.
type ListContactsRequest struct {
	UserID string `json:"user_id"`
}

// ListContactsResponse carries the organization-scoped contact list.
type ListContactsResponse struct {
	Contacts []chat.UserIdentity `json:"contacts"`
}

// ListGroupMembersRequest is the request for listing a group's roster.
type ListGroupMembersRequest struct {
	GroupID string `json:"group_id"`
}

// ListGroupMembersResponse carries the roster and its admin subset.
type ListGroupMembersResponse struct {
	Members []chat.UserIdentity `json:"members"`
	Admins  []string            `json:"admins"`
}

// IsGroupMemberRequest is the request for a membership check.
type IsGroupMemberRequest struct {
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
}

// IsGroupMemberResponse reports the membership check result.
type IsGroupMemberResponse struct {
	Member bool `json:"member"`
}

// LoginRequest is the request for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and identity on success.
type LoginResponse struct {
	Success  bool              `json:"success"`
	Token    string            `json:"token,omitempty"`
	Identity chat.UserIdentity `json:"identity,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// CreateGroupRequest is the request for creating a chat group.
type CreateGroupRequest struct {
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

// CreateGroupResponse carries the created group.
type CreateGroupResponse struct {
	GroupID   string    `json:"group_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ListGroupsRequest is the request for listing a user's groups.
type ListGroupsRequest struct {
	UserID string `json:"user_id"`
}

// GroupSummary describes one group in a listing.
type GroupSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ListGroupsResponse carries the caller's groups.
type ListGroupsResponse struct {
	Groups []GroupSummary `json:"groups"`
}
