package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// Module is the persistent message store. The relay writes through it on
// send; the delivery tracker mutates flags through it; the HTTP API reads
// history pages from it.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new history module.
func NewModule() *Module {
	dbPath := os.Getenv("HISTORY_DB_PATH")
	if dbPath == "" {
		dbPath = "team-chat-messages.db"
	}
	return &Module{dbPath: dbPath}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "history"
}

// Start opens the database and runs migrations.
func (m *Module) Start(_ context.Context) error {
	log.Printf("[history] Connecting to SQLite database: %s", m.dbPath)

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := m.db.AutoMigrate(&MessageRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.repo = NewRepository(m.db)
	log.Println("[history] Module started")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	log.Println("[history] Module stopped")
	return sqlDB.Close()
}

// Health reports database reachability.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get sql.DB: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"driver": "sqlite", "path": m.dbPath},
	}
}

// RegisterServices registers the store's request-reply services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	services := map[string]error{
		"insert-message":    helper.RegisterTypedRequestReplyService(container, "insert-message", json.Unmarshal, json.Marshal, m.handleInsertMessage),
		"get-message":       helper.RegisterTypedRequestReplyService(container, "get-message", json.Unmarshal, json.Marshal, m.handleGetMessage),
		"update-flags":      helper.RegisterTypedRequestReplyService(container, "update-flags", json.Unmarshal, json.Marshal, m.handleUpdateFlags),
		"fetch-history":     helper.RegisterTypedRequestReplyService(container, "fetch-history", json.Unmarshal, json.Marshal, m.handleFetchHistory),
		"mark-channel-read": helper.RegisterTypedRequestReplyService(container, "mark-channel-read", json.Unmarshal, json.Marshal, m.handleMarkChannelRead),
		"unread-counts":     helper.RegisterTypedRequestReplyService(container, "unread-counts", json.Unmarshal, json.Marshal, m.handleUnreadCounts),
	}
	for name, err := range services {
		if err != nil {
			return fmt.Errorf("failed to register %s service: %w", name, err)
		}
	}

	log.Println("[history] Registered services: insert-message, get-message, update-flags, fetch-history, mark-channel-read, unread-counts")
	return nil
}

func (m *Module) handleInsertMessage(_ context.Context, req InsertMessageRequest, _ *mono.Msg) (InsertMessageResponse, error) {
	msg := req.Message
	if err := msg.Channel.Validate(); err != nil {
		return InsertMessageResponse{}, err
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	id, err := m.repo.Insert(&msg)
	if err != nil {
		return InsertMessageResponse{}, err
	}
	return InsertMessageResponse{MessageID: id}, nil
}

func (m *Module) handleGetMessage(_ context.Context, req GetMessageRequest, _ *mono.Msg) (GetMessageResponse, error) {
	msg, err := m.repo.FindByID(req.MessageID)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return GetMessageResponse{Found: false}, nil
		}
		return GetMessageResponse{}, err
	}
	return GetMessageResponse{Found: true, Message: *msg}, nil
}

func (m *Module) handleUpdateFlags(_ context.Context, req UpdateFlagsRequest, _ *mono.Msg) (UpdateFlagsResponse, error) {
	err := m.repo.UpdateFlags(req.MessageID, req.Delivered, req.Read, req.ReadAt)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return UpdateFlagsResponse{Updated: false}, nil
		}
		return UpdateFlagsResponse{}, err
	}
	return UpdateFlagsResponse{Updated: true}, nil
}

func (m *Module) handleFetchHistory(_ context.Context, req FetchHistoryRequest, _ *mono.Msg) (FetchHistoryResponse, error) {
	if err := req.Channel.Validate(); err != nil {
		return FetchHistoryResponse{}, err
	}

	messages, err := m.repo.FetchHistory(req.Channel, req.ViewerID, req.Limit, req.Offset)
	if err != nil {
		return FetchHistoryResponse{}, err
	}

	resp := FetchHistoryResponse{Messages: make([]chat.Message, 0, len(messages))}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, *msg)
	}
	return resp, nil
}

func (m *Module) handleMarkChannelRead(_ context.Context, req MarkChannelReadRequest, _ *mono.Msg) (MarkChannelReadResponse, error) {
	if err := req.Channel.Validate(); err != nil {
		return MarkChannelReadResponse{}, err
	}

	affected, err := m.repo.MarkChannelRead(req.Channel, req.ReaderID, time.Now())
	if err != nil {
		return MarkChannelReadResponse{}, err
	}
	return MarkChannelReadResponse{Affected: affected}, nil
}

func (m *Module) handleUnreadCounts(_ context.Context, req UnreadCountsRequest, _ *mono.Msg) (UnreadCountsResponse, error) {
	counts, err := m.repo.UnreadCounts(req.UserID)
	if err != nil {
		return UnreadCountsResponse{}, err
	}
	return UnreadCountsResponse{Counts: counts}, nil
}
