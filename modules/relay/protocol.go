package relay

import (
	"encoding/json"
	"strings"
	"time"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// Client event types.
const (
	ClientAnnounce      = "announce"
	ClientJoin          = "join"
	ClientLeave         = "leave"
	ClientSend          = "send"
	ClientTyping        = "typing"
	ClientMarkDelivered = "mark_delivered"
	ClientMarkRead      = "mark_read"
)

// Server event types.
const (
	ServerReady     = "ready"
	ServerOnline    = "online"
	ServerOffline   = "offline"
	ServerMessage   = "message"
	ServerSent      = "sent"
	ServerDelivered = "delivered"
	ServerRead      = "read"
	ServerTyping    = "typing"
	ServerJoined    = "joined"
	ServerLeft      = "left"
	ServerError     = "error"
)

// MaxBodyLength caps the accepted message body size in bytes.
const MaxBodyLength = 4096

// ClientEvent is the envelope for messages received from clients.
type ClientEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerEvent is the envelope for messages sent to clients.
type ServerEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// AnnouncePayload binds a connection to an authenticated identity.
type AnnouncePayload struct {
	Token string `json:"token"`
}

// RoomPayload names a room for join and leave events.
type RoomPayload struct {
	Room string `json:"room"`
}

// SendPayload carries an outgoing chat message.
type SendPayload struct {
	Channel         chat.ChannelRef `json:"channel"`
	Body            string          `json:"body"`
	ClientMessageID string          `json:"client_message_id,omitempty"`
}

// Validate checks the send payload beyond channel shape.
func (p SendPayload) Validate() error {
	if err := p.Channel.Validate(); err != nil {
		return err
	}
	body := strings.TrimSpace(p.Body)
	if body == "" {
		return errEmptyBody
	}
	if len(p.Body) > MaxBodyLength {
		return errBodyTooLong
	}
	return nil
}

// TypingPayload signals typing state in a channel.
type TypingPayload struct {
	Channel chat.ChannelRef `json:"channel"`
	Active  bool            `json:"active"`
}

// AckPayload acknowledges a single message.
type AckPayload struct {
	MessageID string `json:"message_id"`
}

// MarkReadPayload acknowledges one message or, when a channel is given,
// every unread message in that channel.
type MarkReadPayload struct {
	MessageID string           `json:"message_id,omitempty"`
	Channel   *chat.ChannelRef `json:"channel,omitempty"`
}

// ReadyPayload confirms a successful announce.
type ReadyPayload struct {
	User   chat.UserIdentity   `json:"user"`
	Online []chat.UserIdentity `json:"online"`
}

// PresencePayload is the body of online and offline broadcasts.
type PresencePayload struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingNotice is the body of typing broadcasts.
type TypingNotice struct {
	Channel  chat.ChannelRef `json:"channel"`
	UserID   string          `json:"user_id"`
	Username string          `json:"username"`
	Active   bool            `json:"active"`
}

// ReceiptPayload is the body of delivered and read notifications.
type ReceiptPayload struct {
	MessageID string     `json:"message_id"`
	ReaderID  string     `json:"reader_id,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// newServerEvent marshals data into a server event envelope.
func newServerEvent(eventType string, data any) (ServerEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ServerEvent{}, err
	}
	return ServerEvent{Type: eventType, Payload: payload}, nil
}

// newErrorEvent builds an error event for the client.
func newErrorEvent(message string) ServerEvent {
	return ServerEvent{Type: ServerError, Error: message}
}
