package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// DeliveryPort defines the interface other modules use to apply receipts.
type DeliveryPort interface {
	MarkChannelRead(ctx context.Context, ref chat.ChannelRef, readerID string) (int64, error)
}

// DeliveryAdapter implements DeliveryPort over the service container.
type DeliveryAdapter struct {
	container mono.ServiceContainer
}

// NewDeliveryAdapter creates a new DeliveryAdapter.
func NewDeliveryAdapter(container mono.ServiceContainer) *DeliveryAdapter {
	if container == nil {
		panic("delivery: ServiceContainer is nil")
	}
	return &DeliveryAdapter{container: container}
}

// MarkChannelRead bulk-marks a channel read for one reader.
func (a *DeliveryAdapter) MarkChannelRead(ctx context.Context, ref chat.ChannelRef, readerID string) (int64, error) {
	req := MarkChannelReadRequest{Channel: ref, ReaderID: readerID}
	var resp MarkChannelReadResponse
	if err := helper.CallRequestReplyService(ctx, a.container, "mark-channel-read", json.Marshal, json.Unmarshal, &req, &resp); err != nil {
		return 0, fmt.Errorf("mark-channel-read request failed: %w", err)
	}
	if resp.Error != "" {
		return 0, errors.New(resp.Error)
	}
	return resp.Affected, nil
}

// Compile-time interface check.
var _ DeliveryPort = (*DeliveryAdapter)(nil)
