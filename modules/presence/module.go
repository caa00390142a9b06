package presence

import (
	"context"
	"log"
	"time"

	"github.com/go-monolith/mono"

	chat "github.com/example/team-chat-demo/domain/chat"
	"github.com/example/team-chat-demo/events"
)

// Module owns the presence tracker and publishes online/offline transitions
// on the event bus.
type Module struct {
	tracker  *Tracker
	eventBus mono.EventBus
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventBusAwareModule = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new presence module.
func NewModule() *Module {
	return &Module{tracker: NewTracker()}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "presence"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserOnlineV1.ToBase(),
		events.UserOfflineV1.ToBase(),
	}
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[presence] Module started")
	return nil
}

// Stop shuts down the module. Presence state is process-local and simply
// discarded.
func (m *Module) Stop(_ context.Context) error {
	log.Printf("[presence] Module stopped - %d users were online", m.tracker.OnlineCount())
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"online_users": m.tracker.OnlineCount()},
	}
}

// Tracker returns the presence tracker for the relay to use.
func (m *Module) Tracker() *Tracker {
	return m.tracker
}

// Announce registers a connection for an identity and publishes UserOnline
// when this is the user's first live connection.
func (m *Module) Announce(connID string, identity chat.UserIdentity) {
	if !m.tracker.Announce(connID, identity) {
		return
	}
	if m.eventBus == nil {
		return
	}

	event := events.UserOnlineEvent{
		UserID:    identity.ID,
		Username:  identity.Username,
		Timestamp: time.Now(),
	}
	if err := events.UserOnlineV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[presence] Failed to publish UserOnline event: %v", err)
	}
}

// Remove drops a connection and publishes UserOffline when the user's
// connection set becomes empty.
func (m *Module) Remove(connID string) {
	identity, wentOffline := m.tracker.Remove(connID)
	if !wentOffline || m.eventBus == nil {
		return
	}

	event := events.UserOfflineEvent{
		UserID:    identity.ID,
		Username:  identity.Username,
		Timestamp: time.Now(),
	}
	if err := events.UserOfflineV1.Publish(m.eventBus, event, nil); err != nil {
		log.Printf("[presence] Failed to publish UserOffline event: %v", err)
	}
}
