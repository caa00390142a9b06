package relay

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/team-chat-demo/events"
	"github.com/example/team-chat-demo/modules/delivery"
	"github.com/example/team-chat-demo/modules/directory"
	"github.com/example/team-chat-demo/modules/history"
	"github.com/example/team-chat-demo/modules/presence"
)

// Validation errors surfaced to clients.
var (
	errEmptyBody      = errors.New("message body is required")
	errBodyTooLong    = errors.New("message body too long")
	errNotAnnounced   = errors.New("connection has not announced an identity")
	errNotInRoom      = errors.New("not joined to this room")
	errUnknownPeer    = errors.New("unknown peer")
	errNotGroupMember = errors.New("not a member of this group")
)

// Module fans chat traffic out to live WebSocket connections. Presence
// state and the receipt service are injected at wiring time; the message
// store and user directory are module dependencies.
type Module struct {
	hub      *Hub
	typing   *TypingTracker
	presence *presence.Module
	receipts *delivery.Service
	store    history.HistoryPort
	users    directory.DirectoryPort
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new relay module.
func NewModule() *Module {
	return &Module{
		hub:    NewHub(),
		typing: NewTypingTracker(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"history", "directory"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "history":
		m.store = history.NewHistoryAdapter(container)
	case "directory":
		m.users = directory.NewDirectoryAdapter(container)
	}
}

// SetPresence injects the presence module. Called from main before Start.
func (m *Module) SetPresence(p *presence.Module) {
	m.presence = p
}

// SetReceipts injects the receipt service. Called from main before Start.
func (m *Module) SetReceipts(s *delivery.Service) {
	m.receipts = s
}

// Hub returns the connection hub, used by the API module's upgrade handler.
func (m *Module) Hub() *Hub {
	return m.hub
}

// RegisterEventConsumers subscribes the relay to presence and receipt events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserOnlineV1, m.handleUserOnline, m,
	); err != nil {
		return fmt.Errorf("failed to register UserOnline consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserOfflineV1, m.handleUserOffline, m,
	); err != nil {
		return fmt.Errorf("failed to register UserOffline consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageDeliveredV1, m.handleMessageDelivered, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageDelivered consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageReadV1, m.handleMessageRead, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageRead consumer: %w", err)
	}

	log.Println("[relay] Registered event consumers: UserOnline, UserOffline, MessageDelivered, MessageRead")
	return nil
}

// Start verifies wiring.
func (m *Module) Start(_ context.Context) error {
	if m.store == nil || m.users == nil {
		return fmt.Errorf("relay dependencies not set")
	}
	if m.presence == nil {
		return fmt.Errorf("presence module not injected")
	}
	if m.receipts == nil {
		return fmt.Errorf("receipt service not injected")
	}
	log.Println("[relay] Module started")
	return nil
}

// Stop closes all live connections.
func (m *Module) Stop(_ context.Context) error {
	count := m.hub.ConnectionCount()
	m.hub.CloseAll()
	log.Printf("[relay] Module stopped - %d connections were open", count)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"open_connections": m.hub.ConnectionCount(),
		},
	}
}

// Presence and receipt notifications go out to everyone or to the message
// sender's connections. Online/offline reaches every connection regardless
// of organization; clients filter against their own contact list.

func (m *Module) handleUserOnline(_ context.Context, event events.UserOnlineEvent, _ *mono.Msg) error {
	notice, err := newServerEvent(ServerOnline, PresencePayload{
		UserID:    event.UserID,
		Username:  event.Username,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return err
	}
	m.hub.Broadcast(notice)
	return nil
}

func (m *Module) handleUserOffline(_ context.Context, event events.UserOfflineEvent, _ *mono.Msg) error {
	m.typing.ClearUser(event.UserID)

	notice, err := newServerEvent(ServerOffline, PresencePayload{
		UserID:    event.UserID,
		Username:  event.Username,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return err
	}
	m.hub.Broadcast(notice)
	return nil
}

func (m *Module) handleMessageDelivered(_ context.Context, event events.MessageDeliveredEvent, _ *mono.Msg) error {
	notice, err := newServerEvent(ServerDelivered, ReceiptPayload{
		MessageID: event.MessageID,
		Timestamp: &event.Timestamp,
	})
	if err != nil {
		return err
	}
	m.hub.SendToAll(m.presence.Tracker().Connections(event.SenderID), notice)
	return nil
}

func (m *Module) handleMessageRead(_ context.Context, event events.MessageReadEvent, _ *mono.Msg) error {
	notice, err := newServerEvent(ServerRead, ReceiptPayload{
		MessageID: event.MessageID,
		ReaderID:  event.ReaderID,
		Timestamp: &event.ReadAt,
	})
	if err != nil {
		return err
	}
	m.hub.SendToAll(m.presence.Tracker().Connections(event.SenderID), notice)
	return nil
}
