package history

import (
	"time"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// MessageRecord is the persisted form of a chat message. The channel
// reference is flattened into per-kind columns so each kind can be queried
// directly.
type MessageRecord struct {
	ID          string     `gorm:"primarykey;size:36" json:"id"`
	ChannelKind string     `gorm:"size:10;index;not null" json:"channel_kind"`
	RoomName    string     `gorm:"size:100;index" json:"room_name,omitempty"`
	GroupID     string     `gorm:"size:36;index" json:"group_id,omitempty"`
	ReceiverID  string     `gorm:"size:36;index" json:"receiver_id,omitempty"`
	SenderID    string     `gorm:"size:36;index;not null" json:"sender_id"`
	SenderName  string     `gorm:"size:50" json:"sender_name"`
	Body        string     `gorm:"size:5000;not null" json:"body"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	IsDelivered bool       `gorm:"not null;default:false" json:"is_delivered"`
	IsRead      bool       `gorm:"not null;default:false" json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

// TableName returns the table name for MessageRecord.
func (MessageRecord) TableName() string {
	return "chat_messages"
}

// recordFromMessage flattens a domain message for storage.
func recordFromMessage(msg *chat.Message) *MessageRecord {
	return &MessageRecord{
		ID:          msg.ID,
		ChannelKind: string(msg.Channel.Kind),
		RoomName:    msg.Channel.Room,
		GroupID:     msg.Channel.GroupID,
		ReceiverID:  msg.Channel.PeerID,
		SenderID:    msg.SenderID,
		SenderName:  msg.SenderName,
		Body:        msg.Body,
		CreatedAt:   msg.CreatedAt,
		IsDelivered: msg.Delivered,
		IsRead:      msg.Read,
		ReadAt:      msg.ReadAt,
	}
}

// ToMessage rebuilds the domain message from a record.
func (r *MessageRecord) ToMessage() *chat.Message {
	ref := chat.ChannelRef{Kind: chat.ChannelKind(r.ChannelKind)}
	switch ref.Kind {
	case chat.ChannelDirect:
		ref.PeerID = r.ReceiverID
	case chat.ChannelGroup:
		ref.GroupID = r.GroupID
	case chat.ChannelRoom:
		ref.Room = r.RoomName
	}
	return &chat.Message{
		ID:         r.ID,
		Channel:    ref,
		SenderID:   r.SenderID,
		SenderName: r.SenderName,
		Body:       r.Body,
		CreatedAt:  r.CreatedAt,
		Delivered:  r.IsDelivered,
		Read:       r.IsRead,
		ReadAt:     r.ReadAt,
	}
}
