package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/team-chat-demo/events"
	"github.com/example/team-chat-demo/modules/directory"
	"github.com/example/team-chat-demo/modules/history"
)

// Module owns receipt handling. It depends on the history module for
// message flags and on the directory module for membership checks. The
// service is created up front so main can hand it to the relay before the
// framework fills in the ports.
type Module struct {
	service *Service
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.EventBusAwareModule = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new delivery module.
func NewModule() *Module {
	return &Module{service: &Service{}}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "delivery"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"history", "directory"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "history":
		m.service.store = history.NewHistoryAdapter(container)
	case "directory":
		m.service.users = directory.NewDirectoryAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.service.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageDeliveredV1.ToBase(),
		events.MessageReadV1.ToBase(),
	}
}

// RegisterServices registers the delivery services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		"mark-channel-read",
		json.Unmarshal,
		json.Marshal,
		m.handleMarkChannelRead,
	); err != nil {
		return fmt.Errorf("failed to register mark-channel-read service: %w", err)
	}
	return nil
}

// Start verifies that the framework filled in both ports.
func (m *Module) Start(_ context.Context) error {
	if m.service.store == nil || m.service.users == nil {
		return fmt.Errorf("delivery dependencies not set")
	}
	if m.service.eventBus == nil {
		log.Println("[delivery] Warning: eventBus not set, receipt events will not be published")
	}
	log.Println("[delivery] Module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[delivery] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.service.store == nil || m.service.users == nil {
		return mono.HealthStatus{Healthy: false, Message: "dependencies not wired"}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// Service returns the receipt service for the relay to use.
func (m *Module) Service() *Service {
	return m.service
}

func (m *Module) handleMarkChannelRead(ctx context.Context, req MarkChannelReadRequest, _ *mono.Msg) (MarkChannelReadResponse, error) {
	affected, err := m.service.MarkChannelRead(ctx, req.Channel, req.ReaderID)
	if err != nil {
		return MarkChannelReadResponse{Error: err.Error()}, nil
	}
	return MarkChannelReadResponse{Affected: affected}, nil
}
