package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// UserOnlineEvent is emitted when a user's first connection is announced.
type UserOnlineEvent struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// UserOfflineEvent is emitted when a user's last connection goes away.
type UserOfflineEvent struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the presence module.
var (
	UserOnlineV1 = helper.EventDefinition[UserOnlineEvent](
		"presence",
		"UserOnline",
		"v1",
	)

	UserOfflineV1 = helper.EventDefinition[UserOfflineEvent](
		"presence",
		"UserOffline",
		"v1",
	)
)
