package delivery

import (
	chat "github.com/example/team-chat-demo/domain/chat"
)

// MarkChannelReadRequest is the request for the mark-channel-read service.
type MarkChannelReadRequest struct {
	Channel  chat.ChannelRef `json:"channel"`
	ReaderID string          `json:"reader_id"`
}

// MarkChannelReadResponse is the response for the mark-channel-read service.
type MarkChannelReadResponse struct {
	Affected int64  `json:"affected"`
	Error    string `json:"error,omitempty"`
}
