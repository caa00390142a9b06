package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// Module is the user directory: it resolves identities, contact lists and
// group rosters for the rest of the application.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	hasher *PasswordHasher
	jwt    *JWTManager
	dbPath string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new directory module.
func NewModule() *Module {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "team-chat.db"
	}

	jwtConfig := DefaultJWTConfig()
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		jwtConfig.SecretKey = secret
	}

	return &Module{
		dbPath: dbPath,
		hasher: NewPasswordHasher(),
		jwt:    NewJWTManager(jwtConfig),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "directory"
}

// Start opens the database, runs migrations, and seeds the demo organization.
func (m *Module) Start(_ context.Context) error {
	log.Printf("[directory] Connecting to SQLite database: %s", m.dbPath)

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := m.db.AutoMigrate(&User{}, &Group{}, &GroupMember{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.repo = NewRepository(m.db)

	if err := m.seedDemoOrganization(); err != nil {
		return fmt.Errorf("failed to seed demo organization: %w", err)
	}

	log.Println("[directory] Module started")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	log.Println("[directory] Module stopped")
	return sqlDB.Close()
}

// Health reports database reachability.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get sql.DB: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"driver": "sqlite", "path": m.dbPath},
	}
}

// RegisterServices registers the directory's request-reply services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	services := map[string]error{
		"resolve-token":      helper.RegisterTypedRequestReplyService(container, "resolve-token", json.Unmarshal, json.Marshal, m.handleResolveToken),
		"get-user":           helper.RegisterTypedRequestReplyService(container, "get-user", json.Unmarshal, json.Marshal, m.handleGetUser),
		"list-contacts":      helper.RegisterTypedRequestReplyService(container, "list-contacts", json.Unmarshal, json.Marshal, m.handleListContacts),
		"list-group-members": helper.RegisterTypedRequestReplyService(container, "list-group-members", json.Unmarshal, json.Marshal, m.handleListGroupMembers),
		"is-group-member":    helper.RegisterTypedRequestReplyService(container, "is-group-member", json.Unmarshal, json.Marshal, m.handleIsGroupMember),
		"login":              helper.RegisterTypedRequestReplyService(container, "login", json.Unmarshal, json.Marshal, m.handleLogin),
		"create-group":       helper.RegisterTypedRequestReplyService(container, "create-group", json.Unmarshal, json.Marshal, m.handleCreateGroup),
		"list-groups":        helper.RegisterTypedRequestReplyService(container, "list-groups", json.Unmarshal, json.Marshal, m.handleListGroups),
	}
	for name, err := range services {
		if err != nil {
			return fmt.Errorf("failed to register %s service: %w", name, err)
		}
	}

	log.Println("[directory] Registered services: resolve-token, get-user, list-contacts, list-group-members, is-group-member, login, create-group, list-groups")
	return nil
}

func (m *Module) handleResolveToken(_ context.Context, req ResolveTokenRequest, _ *mono.Msg) (ResolveTokenResponse, error) {
	claims, err := m.jwt.Validate(req.Token)
	if err != nil {
		return ResolveTokenResponse{Valid: false, Error: err.Error()}, nil
	}

	// The token may outlive the account; re-check the directory.
	user, err := m.repo.FindUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ResolveTokenResponse{Valid: false, Error: "user not found"}, nil
		}
		return ResolveTokenResponse{}, err
	}

	return ResolveTokenResponse{Valid: true, Identity: user.Identity()}, nil
}

func (m *Module) handleGetUser(_ context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.repo.FindUserByID(req.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return GetUserResponse{Found: false}, nil
		}
		return GetUserResponse{}, err
	}
	return GetUserResponse{Found: true, Identity: user.Identity()}, nil
}

func (m *Module) handleListContacts(_ context.Context, req ListContactsRequest, _ *mono.Msg) (ListContactsResponse, error) {
	users, err := m.repo.ListContacts(req.UserID)
	if err != nil {
		return ListContactsResponse{}, err
	}
	contacts := make([]chat.UserIdentity, 0, len(users))
	for _, u := range users {
		contacts = append(contacts, u.Identity())
	}
	return ListContactsResponse{Contacts: contacts}, nil
}

func (m *Module) handleListGroupMembers(_ context.Context, req ListGroupMembersRequest, _ *mono.Msg) (ListGroupMembersResponse, error) {
	users, admins, err := m.repo.ListGroupMembers(req.GroupID)
	if err != nil {
		return ListGroupMembersResponse{}, err
	}

	resp := ListGroupMembersResponse{
		Members: make([]chat.UserIdentity, 0, len(users)),
		Admins:  make([]string, 0, len(admins)),
	}
	for _, u := range users {
		resp.Members = append(resp.Members, u.Identity())
		if admins[u.ID] {
			resp.Admins = append(resp.Admins, u.ID)
		}
	}
	return resp, nil
}

func (m *Module) handleIsGroupMember(_ context.Context, req IsGroupMemberRequest, _ *mono.Msg) (IsGroupMemberResponse, error) {
	member, err := m.repo.IsGroupMember(req.GroupID, req.UserID)
	if err != nil {
		return IsGroupMemberResponse{}, err
	}
	return IsGroupMemberResponse{Member: member}, nil
}

func (m *Module) handleLogin(_ context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	user, err := m.repo.FindUserByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResponse{Success: false, Error: "invalid email or password"}, nil
		}
		return LoginResponse{}, err
	}

	if !m.hasher.Verify(req.Password, user.PasswordHash) {
		return LoginResponse{Success: false, Error: "invalid email or password"}, nil
	}

	token, err := m.jwt.Generate(user.ID, user.Username, user.OrganizationID)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("failed to issue token: %w", err)
	}

	if err := m.repo.UpdateLastLogin(user.ID, time.Now()); err != nil {
		log.Printf("[directory] Failed to update last_login for %s: %v", user.ID, err)
	}

	return LoginResponse{Success: true, Token: token, Identity: user.Identity()}, nil
}

func (m *Module) handleCreateGroup(_ context.Context, req CreateGroupRequest, _ *mono.Msg) (CreateGroupResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return CreateGroupResponse{}, errors.New("group name is required")
	}

	creator, err := m.repo.FindUserByID(req.CreatedBy)
	if err != nil {
		return CreateGroupResponse{}, err
	}

	group := &Group{
		ID:             uuid.New().String(),
		Name:           name,
		OrganizationID: creator.OrganizationID,
		CreatedBy:      creator.ID,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	if err := m.repo.CreateGroup(group); err != nil {
		return CreateGroupResponse{}, err
	}

	return CreateGroupResponse{GroupID: group.ID, Name: group.Name, CreatedAt: group.CreatedAt}, nil
}

func (m *Module) handleListGroups(_ context.Context, req ListGroupsRequest, _ *mono.Msg) (ListGroupsResponse, error) {
	groups, err := m.repo.ListGroups(req.UserID)
	if err != nil {
		return ListGroupsResponse{}, err
	}
	resp := ListGroupsResponse{Groups: make([]GroupSummary, 0, len(groups))}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, GroupSummary{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt})
	}
	return resp, nil
}
