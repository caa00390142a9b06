package api

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/team-chat-demo/modules/delivery"
	"github.com/example/team-chat-demo/modules/directory"
	"github.com/example/team-chat-demo/modules/history"
	"github.com/example/team-chat-demo/modules/presence"
	"github.com/example/team-chat-demo/modules/relay"
)

// Module is the HTTP and WebSocket entrypoint. REST routes serve login,
// contacts, groups and history; /ws upgrades into the relay.
type Module struct {
	app      *fiber.App
	addr     string
	users    directory.DirectoryPort
	store    history.HistoryPort
	receipts delivery.DeliveryPort
	presence *presence.Tracker
	relay    *relay.Module
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new API module listening on addr. An empty addr
// falls back to the PORT environment variable, then :3000.
func NewModule(addr string) *Module {
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":3000"
		}
	}
	return &Module{addr: addr}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"directory", "history", "delivery"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "directory":
		m.users = directory.NewDirectoryAdapter(container)
	case "history":
		m.store = history.NewHistoryAdapter(container)
	case "delivery":
		m.receipts = delivery.NewDeliveryAdapter(container)
	}
}

// SetPresence injects the presence tracker. Called from main before Start.
func (m *Module) SetPresence(tracker *presence.Tracker) {
	m.presence = tracker
}

// SetRelay injects the relay module. Called from main before Start.
func (m *Module) SetRelay(r *relay.Module) {
	m.relay = r
}

// Start initializes the Fiber server.
func (m *Module) Start(_ context.Context) error {
	if m.users == nil || m.store == nil || m.receipts == nil {
		return fmt.Errorf("api dependencies not set")
	}
	if m.presence == nil || m.relay == nil {
		return fmt.Errorf("presence or relay not injected")
	}

	m.app = fiber.New(fiber.Config{
		AppName:               "Team Chat Demo",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:8080"
	}
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.registerRoutes()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[api] HTTP server started on %s", m.addr)
	return nil
}

// Stop gracefully shuts down the server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	log.Println("[api] HTTP server stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"addr": m.addr},
	}
}

// registerRoutes sets up all HTTP and WebSocket routes.
func (m *Module) registerRoutes() {
	m.app.Get("/health", m.handleHealthCheck)

	api := m.app.Group("/api/v1")
	api.Post("/auth/login", m.handleLogin)

	authed := api.Group("", m.requireAuth)
	authed.Get("/users", m.handleListContacts)
	authed.Get("/users/unread", m.handleUnreadCounts)
	authed.Get("/groups", m.handleListGroups)
	authed.Post("/groups", m.handleCreateGroup)
	authed.Get("/groups/:id/members", m.handleGroupMembers)
	authed.Get("/channels/:type/:id/messages", m.handleChannelMessages)
	authed.Post("/channels/:type/:id/read", m.handleMarkChannelRead)

	// WebSocket upgrade middleware
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		m.relay.ServeConn(c, c.Query("token"))
	}))
}

// errorHandler handles errors globally.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	log.Printf("[api] HTTP error %d: %v", code, err)

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}
