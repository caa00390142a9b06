package history

import (
	"time"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// InsertMessageRequest is the request for persisting a message.
type InsertMessageRequest struct {
	Message chat.Message `json:"message"`
}

// InsertMessageResponse carries the persisted message ID.
type InsertMessageResponse struct {
	MessageID string `json:"message_id"`
}

// GetMessageRequest is the request for fetching a single message.
type GetMessageRequest struct {
	MessageID string `json:"message_id"`
}

// GetMessageResponse carries a message, when found.
type GetMessageResponse struct {
	Found   bool         `json:"found"`
	Message chat.Message `json:"message,omitempty"`
}

// UpdateFlagsRequest is the request for mutating delivered/read state.
type UpdateFlagsRequest struct {
	MessageID string     `json:"message_id"`
	Delivered bool       `json:"delivered"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// UpdateFlagsResponse reports whether the message existed.
type UpdateFlagsResponse struct {
	Updated bool `json:"updated"`
}

// FetchHistoryRequest is the request for a channel history page.
type FetchHistoryRequest struct {
	Channel  chat.ChannelRef `json:"channel"`
	ViewerID string          `json:"viewer_id"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// FetchHistoryResponse carries a page of messages, oldest first.
type FetchHistoryResponse struct {
	Messages []chat.Message `json:"messages"`
}

// MarkChannelReadRequest is the request for bulk-marking a channel read.
type MarkChannelReadRequest struct {
	Channel  chat.ChannelRef `json:"channel"`
	ReaderID string          `json:"reader_id"`
}

// MarkChannelReadResponse carries the number of affected messages.
type MarkChannelReadResponse struct {
	Affected int64 `json:"affected"`
}

// UnreadCountsRequest is the request for a user's unread counters.
type UnreadCountsRequest struct {
	UserID string `json:"user_id"`
}

// UnreadCountsResponse maps sender IDs to unread direct-message counts.
type UnreadCountsResponse struct {
	Counts map[string]int64 `json:"counts"`
}
