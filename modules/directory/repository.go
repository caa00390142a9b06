package directory

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrGroupNotFound is returned when a group is not found.
	ErrGroupNotFound = errors.New("group not found")
)

// Repository handles user and group persistence using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new directory repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user account.
func (r *Repository) CreateUser(user *User) error {
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByID finds an active user by ID.
func (r *Repository) FindUserByID(id string) (*User, error) {
	var user User
	err := r.db.First(&user, "id = ? AND is_active = ?", id, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// FindUserByEmail finds an active user by email.
func (r *Repository) FindUserByEmail(email string) (*User, error) {
	var user User
	err := r.db.First(&user, "email = ? AND is_active = ?", email, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// ListContacts returns all active users in the same organization as userID,
// excluding the user themselves, ordered by username.
func (r *Repository) ListContacts(userID string) ([]*User, error) {
	owner, err := r.FindUserByID(userID)
	if err != nil {
		return nil, err
	}

	var users []*User
	err = r.db.
		Where("organization_id = ? AND id != ? AND is_active = ?", owner.OrganizationID, userID, true).
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return users, nil
}

// UpdateLastLogin records a successful login.
func (r *Repository) UpdateLastLogin(userID string, at time.Time) error {
	return r.db.Model(&User{}).Where("id = ?", userID).Update("last_login", at).Error
}

// CreateGroup creates a group and enrolls the creator as admin.
func (r *Repository) CreateGroup(group *Group) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		member := &GroupMember{
			GroupID:  group.ID,
			UserID:   group.CreatedBy,
			IsAdmin:  true,
			JoinedAt: time.Now(),
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("failed to enroll creator: %w", err)
		}
		return nil
	})
}

// FindGroupByID finds an active group by ID.
func (r *Repository) FindGroupByID(id string) (*Group, error) {
	var group Group
	err := r.db.First(&group, "id = ? AND is_active = ?", id, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	return &group, nil
}

// ListGroups returns the active groups the user belongs to.
func (r *Repository) ListGroups(userID string) ([]*Group, error) {
	var groups []*Group
	err := r.db.
		Joins("JOIN group_members ON group_members.group_id = chat_groups.id").
		Where("group_members.user_id = ? AND chat_groups.is_active = ?", userID, true).
		Order("chat_groups.created_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// AddGroupMember enrolls a user into a group.
func (r *Repository) AddGroupMember(member *GroupMember) error {
	if err := r.db.Create(member).Error; err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// ListGroupMembers returns the users enrolled in a group together with
// their admin flag.
func (r *Repository) ListGroupMembers(groupID string) ([]*User, map[string]bool, error) {
	if _, err := r.FindGroupByID(groupID); err != nil {
		return nil, nil, err
	}

	var members []*GroupMember
	if err := r.db.Where("group_id = ?", groupID).Find(&members).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to list group members: %w", err)
	}

	admins := make(map[string]bool, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
		if m.IsAdmin {
			admins[m.UserID] = true
		}
	}

	var users []*User
	if len(ids) > 0 {
		err := r.db.Where("id IN ? AND is_active = ?", ids, true).Order("username ASC").Find(&users).Error
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load member users: %w", err)
		}
	}
	return users, admins, nil
}

// IsGroupMember reports whether the user is enrolled in the group.
func (r *Repository) IsGroupMember(groupID, userID string) (bool, error) {
	var count int64
	err := r.db.Model(&GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// CountUsers returns the number of user rows, used by the demo seed guard.
func (r *Repository) CountUsers() (int64, error) {
	var count int64
	if err := r.db.Model(&User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
