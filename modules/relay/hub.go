package relay

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// wsWriter is the write side of a client connection. *websocket.Conn
// satisfies it; tests substitute an in-memory fake.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection is one live WebSocket client. Writes are serialized per
// connection; the websocket library does not allow concurrent writers.
type Connection struct {
	ID   string
	conn wsWriter
	mu   sync.Mutex
}

// NewConnection wraps a writer as a hub connection.
func NewConnection(id string, conn wsWriter) *Connection {
	return &Connection{ID: id, conn: conn}
}

// Send writes a server event to the connection. Failures are logged, not
// returned; a dead connection is collected by its own read loop.
func (c *Connection) Send(event ServerEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[relay] Failed to marshal %s event: %v", event.Type, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[relay] Failed to send to connection %s: %v", c.ID, err)
	}
}

// Close closes the underlying connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.Close()
}

// Hub tracks live connections and their room memberships. A connection may
// sit in any number of rooms at once. User-level state lives in the
// presence tracker; the hub only knows connections.
type Hub struct {
	mu        sync.RWMutex
	conns     map[string]*Connection     // connID -> connection
	rooms     map[string]map[string]bool // room -> set of connIDs
	connRooms map[string]map[string]bool // connID -> set of rooms
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:     make(map[string]*Connection),
		rooms:     make(map[string]map[string]bool),
		connRooms: make(map[string]map[string]bool),
	}
}

// Add registers a connection with the hub.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID] = conn
}

// Remove drops a connection and clears its room memberships.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	delete(h.conns, connID)
	for room := range h.connRooms[connID] {
		h.leaveLocked(connID, room)
	}
	delete(h.connRooms, connID)
}

// JoinRoom adds a connection to a room. Joining twice is a no-op.
func (h *Hub) JoinRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][connID] = true
	if h.connRooms[connID] == nil {
		h.connRooms[connID] = make(map[string]bool)
	}
	h.connRooms[connID][room] = true
}

// LeaveRoom removes a connection from a room.
func (h *Hub) LeaveRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(connID, room)
	if set := h.connRooms[connID]; set != nil {
		delete(set, room)
	}
}

func (h *Hub) leaveLocked(connID, room string) {
	if members := h.rooms[room]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// InRoom reports whether a connection has joined a room.
func (h *Hub) InRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connRooms[connID][room]
}

// RoomConnections returns the connection IDs currently in a room.
func (h *Hub) RoomConnections(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[room]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// SendTo writes an event to one connection if it is still live.
func (h *Hub) SendTo(connID string, event ServerEvent) {
	h.mu.RLock()
	conn := h.conns[connID]
	h.mu.RUnlock()

	if conn != nil {
		conn.Send(event)
	}
}

// SendToAll writes an event to a set of connections.
func (h *Hub) SendToAll(connIDs []string, event ServerEvent) {
	for _, id := range connIDs {
		h.SendTo(id, event)
	}
}

// Broadcast writes an event to every live connection.
func (h *Hub) Broadcast(event ServerEvent) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Send(event)
	}
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll closes every connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[string]*Connection)
	h.rooms = make(map[string]map[string]bool)
	h.connRooms = make(map[string]map[string]bool)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}
