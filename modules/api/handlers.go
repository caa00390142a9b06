package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	chat "github.com/example/team-chat-demo/domain/chat"
	"github.com/example/team-chat-demo/modules/directory"
)

// handleLogin authenticates a user and issues a token (POST /api/v1/auth/login).
func (m *Module) handleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "email and password are required",
		})
	}

	token, identity, err := m.users.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrLoginFailed) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid email or password",
			})
		}
		return fiber.ErrInternalServerError
	}

	return c.JSON(LoginResponse{Token: token, User: *identity})
}

// handleListContacts returns the caller's organization contacts with
// presence (GET /api/v1/users).
func (m *Module) handleListContacts(c *fiber.Ctx) error {
	identity := identityFrom(c)

	users, err := m.users.ListContacts(c.Context(), identity.ID)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	contacts := make([]Contact, 0, len(users))
	for _, user := range users {
		contacts = append(contacts, Contact{
			UserIdentity: user,
			Online:       m.presence.IsOnline(user.ID),
		})
	}
	return c.JSON(ContactsResponse{Contacts: contacts, Total: len(contacts)})
}

// handleUnreadCounts returns per-sender unread direct-message counts
// (GET /api/v1/users/unread).
func (m *Module) handleUnreadCounts(c *fiber.Ctx) error {
	identity := identityFrom(c)

	counts, err := m.store.UnreadCounts(c.Context(), identity.ID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if counts == nil {
		counts = map[string]int64{}
	}
	return c.JSON(UnreadResponse{Counts: counts})
}

// handleListGroups returns the caller's groups (GET /api/v1/groups).
func (m *Module) handleListGroups(c *fiber.Ctx) error {
	identity := identityFrom(c)

	groups, err := m.users.ListGroups(c.Context(), identity.ID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if groups == nil {
		groups = []directory.GroupSummary{}
	}
	return c.JSON(GroupsResponse{Groups: groups, Total: len(groups)})
}

// handleCreateGroup creates a group with the caller as admin
// (POST /api/v1/groups).
func (m *Module) handleCreateGroup(c *fiber.Ctx) error {
	identity := identityFrom(c)

	var req CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	group, err := m.users.CreateGroup(c.Context(), strings.TrimSpace(req.Name), identity.ID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

// handleGroupMembers returns a group's roster (GET /api/v1/groups/:id/members).
func (m *Module) handleGroupMembers(c *fiber.Ctx) error {
	identity := identityFrom(c)
	groupID := c.Params("id")

	member, err := m.users.IsGroupMember(c.Context(), groupID, identity.ID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if !member {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Not a member of this group",
		})
	}

	members, admins, err := m.users.ListGroupMembers(c.Context(), groupID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if admins == nil {
		admins = []string{}
	}
	return c.JSON(GroupMembersResponse{Members: members, Admins: admins, Total: len(members)})
}

// channelFromParams builds a channel reference from the :type/:id route
// segments and checks the caller may view it.
func (m *Module) channelFromParams(c *fiber.Ctx, viewer chat.UserIdentity) (chat.ChannelRef, error) {
	id := c.Params("id")

	var ref chat.ChannelRef
	switch chat.ChannelKind(c.Params("type")) {
	case chat.ChannelDirect:
		ref = chat.DirectRef(id)
	case chat.ChannelGroup:
		ref = chat.GroupRef(id)
		member, err := m.users.IsGroupMember(c.Context(), id, viewer.ID)
		if err != nil {
			return ref, fiber.ErrInternalServerError
		}
		if !member {
			return ref, fiber.NewError(fiber.StatusForbidden, "Not a member of this group")
		}
	case chat.ChannelRoom:
		ref = chat.RoomRef(id)
	default:
		return ref, fiber.NewError(fiber.StatusBadRequest, "Channel type must be direct, group or room")
	}

	if err := ref.Validate(); err != nil {
		return ref, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return ref, nil
}

// handleChannelMessages returns one page of channel history, oldest first
// (GET /api/v1/channels/:type/:id/messages).
func (m *Module) handleChannelMessages(c *fiber.Ctx) error {
	identity := identityFrom(c)

	ref, err := m.channelFromParams(c, identity)
	if err != nil {
		return err
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	messages, err := m.store.FetchHistory(c.Context(), ref, identity.ID, limit, offset)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return c.JSON(MessagesResponse{Messages: messages, Total: len(messages)})
}

// handleMarkChannelRead bulk-marks a channel read for the caller
// (POST /api/v1/channels/:type/:id/read).
func (m *Module) handleMarkChannelRead(c *fiber.Ctx) error {
	identity := identityFrom(c)

	ref, err := m.channelFromParams(c, identity)
	if err != nil {
		return err
	}

	affected, err := m.receipts.MarkChannelRead(c.Context(), ref, identity.ID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(MarkReadResponse{Affected: affected})
}

// handleHealthCheck reports service liveness (GET /health).
func (m *Module) handleHealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "team-chat-demo",
	})
}
