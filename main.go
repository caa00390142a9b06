package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/team-chat-demo/modules/api"
	"github.com/example/team-chat-demo/modules/delivery"
	"github.com/example/team-chat-demo/modules/directory"
	"github.com/example/team-chat-demo/modules/history"
	"github.com/example/team-chat-demo/modules/presence"
	"github.com/example/team-chat-demo/modules/relay"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Team Chat Demo - Presence + Delivery Relay ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	directoryModule := directory.NewModule()
	historyModule := history.NewModule()
	presenceModule := presence.NewModule()
	deliveryModule := delivery.NewModule()
	relayModule := relay.NewModule()
	apiModule := api.NewModule("")

	// Presence state and the receipt service are shared by direct reference
	// rather than via the ServiceContainer: they sit on the hot path of
	// every WebSocket frame.
	relayModule.SetPresence(presenceModule)
	relayModule.SetReceipts(deliveryModule.Service())
	apiModule.SetPresence(presenceModule.Tracker())
	apiModule.SetRelay(relayModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - directory: users, groups, auth (ServiceProviderModule)
	// - history: message store (ServiceProviderModule)
	// - presence: online tracking (EventEmitterModule)
	// - delivery: receipts (depends on history, directory)
	// - relay: WebSocket fan-out (depends on history, directory; EventConsumerModule)
	// - api: HTTP/WebSocket entrypoint (depends on directory, history, delivery)
	app.Register(directoryModule)
	app.Register(historyModule)
	app.Register(presenceModule)
	app.Register(deliveryModule)
	app.Register(relayModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                                  - Health check")
	log.Println("  POST   /api/v1/auth/login                       - Login, returns a JWT")
	log.Println("  GET    /api/v1/users                            - Contacts with presence")
	log.Println("  GET    /api/v1/users/unread                     - Unread counts per sender")
	log.Println("  GET    /api/v1/groups                           - List my groups")
	log.Println("  POST   /api/v1/groups                           - Create a group")
	log.Println("  GET    /api/v1/groups/:id/members               - Group roster")
	log.Println("  GET    /api/v1/channels/:type/:id/messages      - Channel history")
	log.Println("  POST   /api/v1/channels/:type/:id/read          - Mark channel read")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println("  Client events: announce, join, leave, send, typing, mark_delivered, mark_read")
	log.Println("  Server events: ready, online, offline, message, sent, delivered, read, typing, error")
	log.Println("")
	log.Println("Demo users: alice@demo.example / bob@demo.example / carol@demo.example (password: demo1234)")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
