package relay

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// wsConn is the full duplex surface of a client connection. *websocket.Conn
// satisfies it.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	wsWriter
}

// ServeConn runs the read loop for one WebSocket connection. It blocks
// until the client disconnects. A non-empty token is resolved up front, as
// if the client had sent an announce event; clients may also announce (or
// re-announce) explicitly. Cleanup removes the connection from the hub and
// from presence, which publishes the offline transition when this was the
// user's last connection.
func (m *Module) ServeConn(ws wsConn, token string) {
	connID := uuid.New().String()
	conn := NewConnection(connID, ws)
	m.hub.Add(conn)
	limiter := newRateLimiter(burstSize, messagesPerSecond)

	defer func() {
		m.hub.Remove(connID)
		m.presence.Remove(connID)
		conn.Close()
	}()

	log.Printf("[relay] Connection %s opened", connID)

	if token != "" {
		m.announce(context.Background(), conn, token)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[relay] Connection %s error: %v", connID, err)
			}
			break
		}

		var event ClientEvent
		if err := json.Unmarshal(data, &event); err != nil {
			conn.Send(newErrorEvent("invalid event format"))
			continue
		}

		m.handleClientEvent(context.Background(), conn, limiter, event)
	}

	log.Printf("[relay] Connection %s closed", connID)
}

func (m *Module) handleClientEvent(ctx context.Context, conn *Connection, limiter *rateLimiter, event ClientEvent) {
	switch event.Type {
	case ClientAnnounce:
		m.handleAnnounce(ctx, conn, event.Payload)
	case ClientJoin:
		m.handleJoin(conn, event.Payload)
	case ClientLeave:
		m.handleLeave(conn, event.Payload)
	case ClientSend:
		m.handleSend(ctx, conn, limiter, event.Payload)
	case ClientTyping:
		m.handleTyping(ctx, conn, event.Payload)
	case ClientMarkDelivered:
		m.handleMarkDelivered(ctx, conn, event.Payload)
	case ClientMarkRead:
		m.handleMarkRead(ctx, conn, event.Payload)
	default:
		conn.Send(newErrorEvent("unknown event type: " + event.Type))
	}
}

// identityFor resolves the announced identity behind a connection, sending
// an error event when the connection never announced.
func (m *Module) identityFor(conn *Connection) (chat.UserIdentity, bool) {
	identity, ok := m.presence.Tracker().Identity(conn.ID)
	if !ok {
		conn.Send(newErrorEvent(errNotAnnounced.Error()))
	}
	return identity, ok
}

func (m *Module) handleAnnounce(ctx context.Context, conn *Connection, payload json.RawMessage) {
	var req AnnouncePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Token == "" {
		conn.Send(newErrorEvent("invalid announce payload"))
		return
	}
	m.announce(ctx, conn, req.Token)
}

func (m *Module) announce(ctx context.Context, conn *Connection, token string) {
	identity, err := m.users.ResolveToken(ctx, token)
	if err != nil {
		conn.Send(newErrorEvent("authentication failed"))
		return
	}

	m.presence.Announce(conn.ID, *identity)

	ready, err := newServerEvent(ServerReady, ReadyPayload{
		User:   *identity,
		Online: m.presence.Tracker().OnlineUsers(),
	})
	if err != nil {
		log.Printf("[relay] Failed to build ready event: %v", err)
		return
	}
	conn.Send(ready)
}

func (m *Module) handleJoin(conn *Connection, payload json.RawMessage) {
	if _, ok := m.identityFor(conn); !ok {
		return
	}

	var req RoomPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Room == "" {
		conn.Send(newErrorEvent("room is required"))
		return
	}

	m.hub.JoinRoom(conn.ID, req.Room)
	if joined, err := newServerEvent(ServerJoined, req); err == nil {
		conn.Send(joined)
	}
}

func (m *Module) handleLeave(conn *Connection, payload json.RawMessage) {
	if _, ok := m.identityFor(conn); !ok {
		return
	}

	var req RoomPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Room == "" {
		conn.Send(newErrorEvent("room is required"))
		return
	}

	m.hub.LeaveRoom(conn.ID, req.Room)
	if left, err := newServerEvent(ServerLeft, req); err == nil {
		conn.Send(left)
	}
}

func (m *Module) handleSend(ctx context.Context, conn *Connection, limiter *rateLimiter, payload json.RawMessage) {
	identity, ok := m.identityFor(conn)
	if !ok {
		return
	}

	if !limiter.allow() {
		conn.Send(newErrorEvent("rate limit exceeded, please slow down"))
		return
	}

	var req SendPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		conn.Send(newErrorEvent("invalid send payload"))
		return
	}
	if err := req.Validate(); err != nil {
		conn.Send(newErrorEvent(err.Error()))
		return
	}
	if err := m.authorizeSend(ctx, conn, identity, req.Channel); err != nil {
		conn.Send(newErrorEvent(err.Error()))
		return
	}

	msg := &chat.Message{
		ID:              uuid.New().String(),
		Channel:         req.Channel,
		SenderID:        identity.ID,
		SenderName:      identity.Username,
		Body:            req.Body,
		CreatedAt:       time.Now(),
		ClientMessageID: req.ClientMessageID,
	}

	// Persistence failures do not block fan-out; the message is still
	// relayed to whoever is connected right now.
	if id, err := m.store.InsertMessage(ctx, msg); err != nil {
		log.Printf("[relay] Failed to persist message from %s: %v", identity.ID, err)
	} else {
		msg.ID = id
	}

	targets, hadLive := m.routeTargets(ctx, conn, identity, msg.Channel)

	notice, err := newServerEvent(ServerMessage, msg)
	if err != nil {
		log.Printf("[relay] Failed to build message event: %v", err)
		return
	}
	m.hub.SendToAll(targets, notice)

	// Room messages reach the sender through the room itself; direct and
	// group senders get a sent ack with the persisted ID instead.
	if msg.Channel.Kind != chat.ChannelRoom {
		if sent, err := newServerEvent(ServerSent, msg); err == nil {
			conn.Send(sent)
		}
		m.typing.Clear(msg.Channel.Key(identity.ID), identity.ID)
		m.receipts.OnSent(ctx, msg, hadLive)
	}
}

// authorizeSend checks that the sender may address the channel at all.
func (m *Module) authorizeSend(ctx context.Context, conn *Connection, sender chat.UserIdentity, ref chat.ChannelRef) error {
	switch ref.Kind {
	case chat.ChannelDirect:
		peer, err := m.users.GetUser(ctx, ref.PeerID)
		if err != nil || peer.OrganizationID != sender.OrganizationID {
			return errUnknownPeer
		}
	case chat.ChannelGroup:
		member, err := m.users.IsGroupMember(ctx, ref.GroupID, sender.ID)
		if err != nil {
			return err
		}
		if !member {
			return errNotGroupMember
		}
	case chat.ChannelRoom:
		if !m.hub.InRoom(conn.ID, ref.Room) {
			return errNotInRoom
		}
	}
	return nil
}

// routeTargets resolves the live connections a channel event goes to, and
// whether any of them belongs to an actual recipient. Direct messages skip
// every sender connection; group messages skip only the originating one, so
// the sender's other devices stay in sync; room messages go to every joined
// connection including the originating one.
func (m *Module) routeTargets(ctx context.Context, conn *Connection, sender chat.UserIdentity, ref chat.ChannelRef) (targets []string, hadLive bool) {
	tracker := m.presence.Tracker()

	switch ref.Kind {
	case chat.ChannelDirect:
		targets = tracker.Connections(ref.PeerID)
		hadLive = len(targets) > 0

	case chat.ChannelGroup:
		members, _, err := m.users.ListGroupMembers(ctx, ref.GroupID)
		if err != nil {
			log.Printf("[relay] Failed to list members of group %s: %v", ref.GroupID, err)
			return nil, false
		}
		for _, member := range members {
			conns := tracker.Connections(member.ID)
			for _, id := range conns {
				if id != conn.ID {
					targets = append(targets, id)
				}
			}
			if member.ID != sender.ID && len(conns) > 0 {
				hadLive = true
			}
		}

	case chat.ChannelRoom:
		targets = m.hub.RoomConnections(ref.Room)
		hadLive = len(targets) > 0
	}
	return targets, hadLive
}

func (m *Module) handleTyping(ctx context.Context, conn *Connection, payload json.RawMessage) {
	identity, ok := m.identityFor(conn)
	if !ok {
		return
	}

	var req TypingPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		conn.Send(newErrorEvent("invalid typing payload"))
		return
	}
	if err := req.Channel.Validate(); err != nil {
		conn.Send(newErrorEvent(err.Error()))
		return
	}

	// Suppress repeats: only state transitions fan out.
	key := req.Channel.Key(identity.ID)
	if req.Active {
		if !m.typing.Mark(key, identity.ID) {
			return
		}
	} else {
		if !m.typing.Clear(key, identity.ID) {
			return
		}
	}

	targets, _ := m.routeTargets(ctx, conn, identity, req.Channel)
	notice, err := newServerEvent(ServerTyping, TypingNotice{
		Channel:  req.Channel,
		UserID:   identity.ID,
		Username: identity.Username,
		Active:   req.Active,
	})
	if err != nil {
		return
	}
	for _, id := range targets {
		if id != conn.ID {
			m.hub.SendTo(id, notice)
		}
	}
}

func (m *Module) handleMarkDelivered(ctx context.Context, conn *Connection, payload json.RawMessage) {
	identity, ok := m.identityFor(conn)
	if !ok {
		return
	}

	var req AckPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.MessageID == "" {
		conn.Send(newErrorEvent("message_id is required"))
		return
	}

	if err := m.receipts.OnDeliveredAck(ctx, req.MessageID, identity.ID); err != nil {
		conn.Send(newErrorEvent(err.Error()))
	}
}

func (m *Module) handleMarkRead(ctx context.Context, conn *Connection, payload json.RawMessage) {
	identity, ok := m.identityFor(conn)
	if !ok {
		return
	}

	var req MarkReadPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		conn.Send(newErrorEvent("invalid mark_read payload"))
		return
	}

	switch {
	case req.Channel != nil:
		if _, err := m.receipts.MarkChannelRead(ctx, *req.Channel, identity.ID); err != nil {
			conn.Send(newErrorEvent(err.Error()))
		}
	case req.MessageID != "":
		if err := m.receipts.OnRead(ctx, req.MessageID, identity.ID); err != nil {
			conn.Send(newErrorEvent(err.Error()))
		}
	default:
		conn.Send(newErrorEvent("message_id or channel is required"))
	}
}
