package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageDeliveredEvent is emitted when a message reaches at least one live
// connection of its receiver, or when the receiver explicitly acknowledges it.
type MessageDeliveredEvent struct {
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageReadEvent is emitted when the receiver acknowledges having viewed
// a message.
type MessageReadEvent struct {
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	ReaderID  string    `json:"reader_id"`
	ReadAt    time.Time `json:"read_at"`
}

// Event definitions for the delivery module.
var (
	MessageDeliveredV1 = helper.EventDefinition[MessageDeliveredEvent](
		"delivery",
		"MessageDelivered",
		"v1",
	)

	MessageReadV1 = helper.EventDefinition[MessageReadEvent](
		"delivery",
		"MessageRead",
		"v1",
	)
)
