package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// HistoryPort defines the interface other modules use to consume the
// message store.
type HistoryPort interface {
	InsertMessage(ctx context.Context, msg *chat.Message) (string, error)
	GetMessage(ctx context.Context, messageID string) (*chat.Message, error)
	UpdateFlags(ctx context.Context, messageID string, delivered, read bool, readAt *time.Time) error
	FetchHistory(ctx context.Context, ref chat.ChannelRef, viewerID string, limit, offset int) ([]chat.Message, error)
	MarkChannelRead(ctx context.Context, ref chat.ChannelRef, readerID string) (int64, error)
	UnreadCounts(ctx context.Context, userID string) (map[string]int64, error)
}

// HistoryAdapter implements HistoryPort over the service container.
type HistoryAdapter struct {
	container mono.ServiceContainer
}

// NewHistoryAdapter creates a new HistoryAdapter.
func NewHistoryAdapter(container mono.ServiceContainer) *HistoryAdapter {
	if container == nil {
		panic("history: ServiceContainer is nil")
	}
	return &HistoryAdapter{container: container}
}

func call[T1 any, T2 any](ctx context.Context, container mono.ServiceContainer, service string, req *T1, resp *T2) error {
	return helper.CallRequestReplyService(ctx, container, service, json.Marshal, json.Unmarshal, req, resp)
}

// InsertMessage persists a message and returns its ID.
func (a *HistoryAdapter) InsertMessage(ctx context.Context, msg *chat.Message) (string, error) {
	req := InsertMessageRequest{Message: *msg}
	var resp InsertMessageResponse
	if err := call(ctx, a.container, "insert-message", &req, &resp); err != nil {
		return "", fmt.Errorf("insert-message request failed: %w", err)
	}
	return resp.MessageID, nil
}

// GetMessage fetches a single message by ID.
func (a *HistoryAdapter) GetMessage(ctx context.Context, messageID string) (*chat.Message, error) {
	req := GetMessageRequest{MessageID: messageID}
	var resp GetMessageResponse
	if err := call(ctx, a.container, "get-message", &req, &resp); err != nil {
		return nil, fmt.Errorf("get-message request failed: %w", err)
	}
	if !resp.Found {
		return nil, ErrMessageNotFound
	}
	msg := resp.Message
	return &msg, nil
}

// UpdateFlags sets the delivered/read state of a message.
func (a *HistoryAdapter) UpdateFlags(ctx context.Context, messageID string, delivered, read bool, readAt *time.Time) error {
	req := UpdateFlagsRequest{MessageID: messageID, Delivered: delivered, Read: read, ReadAt: readAt}
	var resp UpdateFlagsResponse
	if err := call(ctx, a.container, "update-flags", &req, &resp); err != nil {
		return fmt.Errorf("update-flags request failed: %w", err)
	}
	if !resp.Updated {
		return ErrMessageNotFound
	}
	return nil
}

// FetchHistory returns a page of channel messages, oldest first.
func (a *HistoryAdapter) FetchHistory(ctx context.Context, ref chat.ChannelRef, viewerID string, limit, offset int) ([]chat.Message, error) {
	req := FetchHistoryRequest{Channel: ref, ViewerID: viewerID, Limit: limit, Offset: offset}
	var resp FetchHistoryResponse
	if err := call(ctx, a.container, "fetch-history", &req, &resp); err != nil {
		return nil, fmt.Errorf("fetch-history request failed: %w", err)
	}
	return resp.Messages, nil
}

// MarkChannelRead bulk-marks a channel's messages read for one reader.
func (a *HistoryAdapter) MarkChannelRead(ctx context.Context, ref chat.ChannelRef, readerID string) (int64, error) {
	req := MarkChannelReadRequest{Channel: ref, ReaderID: readerID}
	var resp MarkChannelReadResponse
	if err := call(ctx, a.container, "mark-channel-read", &req, &resp); err != nil {
		return 0, fmt.Errorf("mark-channel-read request failed: %w", err)
	}
	return resp.Affected, nil
}

// UnreadCounts returns per-sender unread direct-message counts.
func (a *HistoryAdapter) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	req := UnreadCountsRequest{UserID: userID}
	var resp UnreadCountsResponse
	if err := call(ctx, a.container, "unread-counts", &req, &resp); err != nil {
		return nil, fmt.Errorf("unread-counts request failed: %w", err)
	}
	return resp.Counts, nil
}

// Compile-time interface check.
var _ HistoryPort = (*HistoryAdapter)(nil)
