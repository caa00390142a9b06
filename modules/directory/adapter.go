package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// ErrLoginFailed is returned by the adapter when credentials are rejected.
var ErrLoginFailed = errors.New("invalid email or password")

// DirectoryPort defines the interface other modules use to consume the
// user directory.
type DirectoryPort interface {
	ResolveToken(ctx context.Context, token string) (*chat.UserIdentity, error)
	GetUser(ctx context.Context, userID string) (*chat.UserIdentity, error)
	ListContacts(ctx context.Context, userID string) ([]chat.UserIdentity, error)
	ListGroupMembers(ctx context.Context, groupID string) ([]chat.UserIdentity, []string, error)
	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)
	Login(ctx context.Context, email, password string) (string, *chat.UserIdentity, error)
	CreateGroup(ctx context.Context, name, createdBy string) (*GroupSummary, error)
	ListGroups(ctx context.Context, userID string) ([]GroupSummary, error)
}

// DirectoryAdapter implements DirectoryPort over the service container.
type DirectoryAdapter struct {
	container mono.ServiceContainer
}

// NewDirectoryAdapter creates a new DirectoryAdapter.
func NewDirectoryAdapter(container mono.ServiceContainer) *DirectoryAdapter {
	if container == nil {
		panic("directory: ServiceContainer is nil")
	}
	return &DirectoryAdapter{container: container}
}

func call[T1 any, T2 any](ctx context.Context, container mono.ServiceContainer, service string, req *T1, resp *T2) error {
	return helper.CallRequestReplyService(ctx, container, service, json.Marshal, json.Unmarshal, req, resp)
}

// ResolveToken resolves an access token to a user identity.
func (a *DirectoryAdapter) ResolveToken(ctx context.Context, token string) (*chat.UserIdentity, error) {
	req := ResolveTokenRequest{Token: token}
	var resp ResolveTokenResponse
	if err := call(ctx, a.container, "resolve-token", &req, &resp); err != nil {
		return nil, fmt.Errorf("resolve-token request failed: %w", err)
	}
	if !resp.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, resp.Error)
	}
	identity := resp.Identity
	return &identity, nil
}

// GetUser looks up a user identity by ID.
func (a *DirectoryAdapter) GetUser(ctx context.Context, userID string) (*chat.UserIdentity, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse
	if err := call(ctx, a.container, "get-user", &req, &resp); err != nil {
		return nil, fmt.Errorf("get-user request failed: %w", err)
	}
	if !resp.Found {
		return nil, ErrUserNotFound
	}
	identity := resp.Identity
	return &identity, nil
}

// ListContacts returns the organization-scoped contact list for a user.
func (a *DirectoryAdapter) ListContacts(ctx context.Context, userID string) ([]chat.UserIdentity, error) {
	req := ListContactsRequest{UserID: userID}
	var resp ListContactsResponse
	if err := call(ctx, a.container, "list-contacts", &req, &resp); err != nil {
		return nil, fmt.Errorf("list-contacts request failed: %w", err)
	}
	return resp.Contacts, nil
}

// ListGroupMembers returns a group's roster and admin subset.
func (a *DirectoryAdapter) ListGroupMembers(ctx context.Context, groupID string) ([]chat.UserIdentity, []string, error) {
	req := ListGroupMembersRequest{GroupID: groupID}
	var resp ListGroupMembersResponse
	if err := call(ctx, a.container, "list-group-members", &req, &resp); err != nil {
		return nil, nil, fmt.Errorf("list-group-members request failed: %w", err)
	}
	return resp.Members, resp.Admins, nil
}

// IsGroupMember reports whether a user belongs to a group.
func (a *DirectoryAdapter) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	req := IsGroupMemberRequest{GroupID: groupID, UserID: userID}
	var resp IsGroupMemberResponse
	if err := call(ctx, a.container, "is-group-member", &req, &resp); err != nil {
		return false, fmt.Errorf("is-group-member request failed: %w", err)
	}
	return resp.Member, nil
}

// Login authenticates a user and returns an access token.
func (a *DirectoryAdapter) Login(ctx context.Context, email, password string) (string, *chat.UserIdentity, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp LoginResponse
	if err := call(ctx, a.container, "login", &req, &resp); err != nil {
		return "", nil, fmt.Errorf("login request failed: %w", err)
	}
	if !resp.Success {
		return "", nil, ErrLoginFailed
	}
	identity := resp.Identity
	return resp.Token, &identity, nil
}

// CreateGroup creates a chat group with the creator as admin.
func (a *DirectoryAdapter) CreateGroup(ctx context.Context, name, createdBy string) (*GroupSummary, error) {
	req := CreateGroupRequest{Name: name, CreatedBy: createdBy}
	var resp CreateGroupResponse
	if err := call(ctx, a.container, "create-group", &req, &resp); err != nil {
		return nil, fmt.Errorf("create-group request failed: %w", err)
	}
	return &GroupSummary{ID: resp.GroupID, Name: resp.Name, CreatedAt: resp.CreatedAt}, nil
}

// ListGroups returns the caller's groups.
func (a *DirectoryAdapter) ListGroups(ctx context.Context, userID string) ([]GroupSummary, error) {
	req := ListGroupsRequest{UserID: userID}
	var resp ListGroupsResponse
	if err := call(ctx, a.container, "list-groups", &req, &resp); err != nil {
		return nil, fmt.Errorf("list-groups request failed: %w", err)
	}
	return resp.Groups, nil
}

// Compile-time interface check.
var _ DirectoryPort = (*DirectoryAdapter)(nil)
