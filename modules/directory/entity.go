package directory

import (
	"time"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// User is a directory account scoped to an organization.
type User struct {
	ID             string     `gorm:"primarykey;size:36" json:"id"`
	Username       string     `gorm:"size:50;not null" json:"username"`
	Email          string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"size:255;not null" json:"-"`
	OrganizationID string     `gorm:"size:36;index;not null" json:"organization_id"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Identity converts the account to the identity shape the relay consumes.
func (u *User) Identity() chat.UserIdentity {
	return chat.UserIdentity{
		ID:             u.ID,
		Username:       u.Username,
		OrganizationID: u.OrganizationID,
	}
}

// Group is a named chat group with a persisted roster.
type Group struct {
	ID             string    `gorm:"primarykey;size:36" json:"id"`
	Name           string    `gorm:"size:100;not null" json:"name"`
	OrganizationID string    `gorm:"size:36;index;not null" json:"organization_id"`
	CreatedBy      string    `gorm:"size:36;not null" json:"created_by"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the table name for Group.
func (Group) TableName() string {
	return "chat_groups"
}

// GroupMember links a user to a group. Admins form the group's admin subset.
type GroupMember struct {
	GroupID  string    `gorm:"primarykey;size:36" json:"group_id"`
	UserID   string    `gorm:"primarykey;size:36" json:"user_id"`
	IsAdmin  bool      `gorm:"not null;default:false" json:"is_admin"`
	JoinedAt time.Time `json:"joined_at"`
}

// TableName returns the table name for GroupMember.
func (GroupMember) TableName() string {
	return "group_members"
}
