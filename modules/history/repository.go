package history

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	chat "github.com/example/team-chat-demo/domain/chat"
)

// ErrMessageNotFound is returned when a message is not found.
var ErrMessageNotFound = errors.New("message not found")

// DefaultPageSize bounds history fetches when the caller passes no limit.
const DefaultPageSize = 50

// MaxPageSize is the hard ceiling on a single history page.
const MaxPageSize = 200

// Repository provides access to message storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new message repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert persists a new message and returns its ID.
func (r *Repository) Insert(msg *chat.Message) (string, error) {
	record := recordFromMessage(msg)
	if err := r.db.Create(record).Error; err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	return record.ID, nil
}

// FindByID retrieves a single message.
func (r *Repository) FindByID(id string) (*chat.Message, error) {
	var record MessageRecord
	if err := r.db.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return record.ToMessage(), nil
}

// UpdateFlags sets the delivered/read state of a message. The update is a
// plain idempotent UPDATE so retries are safe.
func (r *Repository) UpdateFlags(id string, delivered, read bool, readAt *time.Time) error {
	updates := map[string]any{
		"is_delivered": delivered,
		"is_read":      read,
	}
	if readAt != nil {
		updates["read_at"] = *readAt
	}

	result := r.db.Model(&MessageRecord{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update flags: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// channelScope narrows a query to the messages of one channel as seen by
// viewerID. Direct channels cover both directions of the pair.
func channelScope(db *gorm.DB, ref chat.ChannelRef, viewerID string) *gorm.DB {
	switch ref.Kind {
	case chat.ChannelDirect:
		return db.Where(
			"channel_kind = ? AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			string(chat.ChannelDirect), viewerID, ref.PeerID, ref.PeerID, viewerID,
		)
	case chat.ChannelGroup:
		return db.Where("channel_kind = ? AND group_id = ?", string(chat.ChannelGroup), ref.GroupID)
	default:
		return db.Where("channel_kind = ? AND room_name = ?", string(chat.ChannelRoom), ref.Room)
	}
}

// FetchHistory returns a page of channel messages ordered oldest first.
func (r *Repository) FetchHistory(ref chat.ChannelRef, viewerID string, limit, offset int) ([]*chat.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var records []MessageRecord
	err := channelScope(r.db, ref, viewerID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	messages := make([]*chat.Message, 0, len(records))
	for i := range records {
		messages = append(messages, records[i].ToMessage())
	}
	return messages, nil
}

// MarkChannelRead marks every message addressed to readerID in the channel
// as read. Messages found here were necessarily fetched after the fact, so
// the delivered flag is set in the same statement; the offline path does not
// distinguish the two states. Room messages carry no receipts.
func (r *Repository) MarkChannelRead(ref chat.ChannelRef, readerID string, at time.Time) (int64, error) {
	var result *gorm.DB

	switch ref.Kind {
	case chat.ChannelDirect:
		result = r.db.Model(&MessageRecord{}).
			Where("channel_kind = ? AND sender_id = ? AND receiver_id = ? AND is_read = ?",
				string(chat.ChannelDirect), ref.PeerID, readerID, false).
			Updates(map[string]any{"is_delivered": true, "is_read": true, "read_at": at})
	case chat.ChannelGroup:
		result = r.db.Model(&MessageRecord{}).
			Where("channel_kind = ? AND group_id = ? AND sender_id != ? AND is_read = ?",
				string(chat.ChannelGroup), ref.GroupID, readerID, false).
			Updates(map[string]any{"is_delivered": true, "is_read": true, "read_at": at})
	default:
		return 0, nil
	}

	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark channel read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// UnreadCounts returns, per sending user, the number of unread direct
// messages addressed to userID.
func (r *Repository) UnreadCounts(userID string) (map[string]int64, error) {
	type row struct {
		SenderID string
		Count    int64
	}
	var rows []row
	err := r.db.Model(&MessageRecord{}).
		Select("sender_id, COUNT(*) as count").
		Where("channel_kind = ? AND receiver_id = ? AND is_read = ?", string(chat.ChannelDirect), userID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count unread: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.SenderID] = r.Count
	}
	return counts, nil
}
