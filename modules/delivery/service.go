package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"

	chat "github.com/example/team-chat-demo/domain/chat"
	"github.com/example/team-chat-demo/events"
	"github.com/example/team-chat-demo/modules/directory"
	"github.com/example/team-chat-demo/modules/history"
)

// Receipt errors.
var (
	// ErrNotRecipient is returned when a user acknowledges a message that
	// was never addressed to them.
	ErrNotRecipient = errors.New("user is not a recipient of this message")
	// ErrOwnMessage is returned when a user acknowledges their own message.
	ErrOwnMessage = errors.New("cannot acknowledge own message")
)

// Service applies delivered/read receipts to stored messages and publishes
// the matching events. Receipts are best effort: a flag may be set without
// the sender ever seeing the notification, but flags never regress.
type Service struct {
	store    history.HistoryPort
	users    directory.DirectoryPort
	eventBus mono.EventBus
}

// NewService creates a delivery service over the given ports.
func NewService(store history.HistoryPort, users directory.DirectoryPort, bus mono.EventBus) *Service {
	return &Service{store: store, users: users, eventBus: bus}
}

// OnSent records the initial delivery state of a freshly routed message.
// hadLiveTargets reports whether the relay wrote the message to at least
// one recipient connection. Room messages carry no receipts and are
// ignored here.
func (s *Service) OnSent(ctx context.Context, msg *chat.Message, hadLiveTargets bool) {
	if msg.Channel.Kind == chat.ChannelRoom || !hadLiveTargets {
		return
	}

	if err := s.store.UpdateFlags(ctx, msg.ID, true, false, nil); err != nil {
		log.Printf("[delivery] Failed to mark message %s delivered: %v", msg.ID, err)
		return
	}
	s.publishDelivered(msg.ID, msg.SenderID)
}

// OnDeliveredAck handles an explicit delivered acknowledgement from a
// recipient. The flag is idempotent; re-acknowledging an already delivered
// message publishes no further event.
func (s *Service) OnDeliveredAck(ctx context.Context, messageID, ackerID string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.checkRecipient(ctx, msg, ackerID); err != nil {
		return err
	}
	if msg.Delivered {
		return nil
	}

	if err := s.store.UpdateFlags(ctx, msg.ID, true, msg.Read, msg.ReadAt); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	s.publishDelivered(msg.ID, msg.SenderID)
	return nil
}

// OnRead handles a read acknowledgement from a recipient. Reading implies
// delivery, so both flags are set together. Re-reading an already read
// message is a no-op.
func (s *Service) OnRead(ctx context.Context, messageID, readerID string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.checkRecipient(ctx, msg, readerID); err != nil {
		return err
	}
	if msg.Read {
		return nil
	}

	readAt := time.Now()
	if err := s.store.UpdateFlags(ctx, msg.ID, true, true, &readAt); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	if s.eventBus != nil {
		event := events.MessageReadEvent{
			MessageID: msg.ID,
			SenderID:  msg.SenderID,
			ReaderID:  readerID,
			ReadAt:    readAt,
		}
		if err := events.MessageReadV1.Publish(s.eventBus, event, nil); err != nil {
			log.Printf("[delivery] Failed to publish MessageRead event: %v", err)
		}
	}
	return nil
}

// MarkChannelRead bulk-marks a channel read for one reader and returns the
// number of affected messages. Group channels require membership.
func (s *Service) MarkChannelRead(ctx context.Context, ref chat.ChannelRef, readerID string) (int64, error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}
	if ref.Kind == chat.ChannelGroup {
		member, err := s.users.IsGroupMember(ctx, ref.GroupID, readerID)
		if err != nil {
			return 0, err
		}
		if !member {
			return 0, ErrNotRecipient
		}
	}
	return s.store.MarkChannelRead(ctx, ref, readerID)
}

// checkRecipient verifies that userID may acknowledge msg. For direct
// messages only the addressed peer qualifies; for group messages any
// member other than the sender does. Room messages never carry receipts.
func (s *Service) checkRecipient(ctx context.Context, msg *chat.Message, userID string) error {
	if msg.SenderID == userID {
		return ErrOwnMessage
	}

	switch msg.Channel.Kind {
	case chat.ChannelDirect:
		if msg.ReceiverID() != userID {
			return ErrNotRecipient
		}
	case chat.ChannelGroup:
		member, err := s.users.IsGroupMember(ctx, msg.Channel.GroupID, userID)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotRecipient
		}
	default:
		return ErrNotRecipient
	}
	return nil
}

func (s *Service) publishDelivered(messageID, senderID string) {
	if s.eventBus == nil {
		return
	}
	event := events.MessageDeliveredEvent{
		MessageID: messageID,
		SenderID:  senderID,
		Timestamp: time.Now(),
	}
	if err := events.MessageDeliveredV1.Publish(s.eventBus, event, nil); err != nil {
		log.Printf("[delivery] Failed to publish MessageDelivered event: %v", err)
	}
}
