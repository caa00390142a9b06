package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	chat "github.com/example/team-chat-demo/domain/chat"
	"github.com/example/team-chat-demo/modules/directory"
	"github.com/example/team-chat-demo/modules/history"
)

// fakeStore is an in-memory HistoryPort for receipt tests.
type fakeStore struct {
	messages map[string]*chat.Message
	updates  int
}

func newFakeStore(msgs ...*chat.Message) *fakeStore {
	store := &fakeStore{messages: make(map[string]*chat.Message)}
	for _, m := range msgs {
		store.messages[m.ID] = m
	}
	return store
}

func (f *fakeStore) InsertMessage(_ context.Context, msg *chat.Message) (string, error) {
	f.messages[msg.ID] = msg
	return msg.ID, nil
}

func (f *fakeStore) GetMessage(_ context.Context, messageID string) (*chat.Message, error) {
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, history.ErrMessageNotFound
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeStore) UpdateFlags(_ context.Context, messageID string, delivered, read bool, readAt *time.Time) error {
	msg, ok := f.messages[messageID]
	if !ok {
		return history.ErrMessageNotFound
	}
	msg.Delivered = delivered
	msg.Read = read
	msg.ReadAt = readAt
	f.updates++
	return nil
}

func (f *fakeStore) FetchHistory(_ context.Context, _ chat.ChannelRef, _ string, _, _ int) ([]chat.Message, error) {
	return nil, nil
}

func (f *fakeStore) MarkChannelRead(_ context.Context, ref chat.ChannelRef, readerID string) (int64, error) {
	var affected int64
	for _, msg := range f.messages {
		if msg.Read || msg.SenderID == readerID {
			continue
		}
		now := time.Now()
		msg.Delivered = true
		msg.Read = true
		msg.ReadAt = &now
		affected++
	}
	return affected, nil
}

func (f *fakeStore) UnreadCounts(_ context.Context, _ string) (map[string]int64, error) {
	return nil, nil
}

// fakeUsers is a DirectoryPort stub that only answers membership checks.
type fakeUsers struct {
	members map[string]bool // groupID:userID -> member
}

func (f *fakeUsers) IsGroupMember(_ context.Context, groupID, userID string) (bool, error) {
	return f.members[groupID+":"+userID], nil
}

func (f *fakeUsers) ResolveToken(context.Context, string) (*chat.UserIdentity, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeUsers) GetUser(context.Context, string) (*chat.UserIdentity, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeUsers) ListContacts(context.Context, string) ([]chat.UserIdentity, error) {
	return nil, nil
}
func (f *fakeUsers) ListGroupMembers(context.Context, string) ([]chat.UserIdentity, []string, error) {
	return nil, nil, nil
}
func (f *fakeUsers) Login(context.Context, string, string) (string, *chat.UserIdentity, error) {
	return "", nil, errors.New("not implemented")
}
func (f *fakeUsers) CreateGroup(context.Context, string, string) (*directory.GroupSummary, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeUsers) ListGroups(context.Context, string) ([]directory.GroupSummary, error) {
	return nil, nil
}

func directMessage(id, sender, receiver string) *chat.Message {
	return &chat.Message{
		ID:        id,
		Channel:   chat.DirectRef(receiver),
		SenderID:  sender,
		Body:      "hello",
		CreatedAt: time.Now(),
	}
}

func TestService_OnSent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		msg           *chat.Message
		hadLive       bool
		wantDelivered bool
	}{
		{
			name:          "direct with live receiver",
			msg:           directMessage("m1", "u1", "u2"),
			hadLive:       true,
			wantDelivered: true,
		},
		{
			name:          "direct with offline receiver",
			msg:           directMessage("m2", "u1", "u2"),
			hadLive:       false,
			wantDelivered: false,
		},
		{
			name: "room message carries no receipts",
			msg: &chat.Message{
				ID:       "m3",
				Channel:  chat.RoomRef("general"),
				SenderID: "u1",
			},
			hadLive:       true,
			wantDelivered: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(tt.msg)
			service := NewService(store, &fakeUsers{}, nil)

			service.OnSent(ctx, tt.msg, tt.hadLive)

			got, _ := store.GetMessage(ctx, tt.msg.ID)
			if got.Delivered != tt.wantDelivered {
				t.Errorf("Delivered = %v, want %v", got.Delivered, tt.wantDelivered)
			}
			if got.Read {
				t.Error("OnSent must never set the read flag")
			}
		})
	}
}

func TestService_OnDeliveredAck(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(directMessage("m1", "u1", "u2"))
	service := NewService(store, &fakeUsers{}, nil)

	if err := service.OnDeliveredAck(ctx, "m1", "u2"); err != nil {
		t.Fatalf("OnDeliveredAck() unexpected error: %v", err)
	}
	msg, _ := store.GetMessage(ctx, "m1")
	if !msg.Delivered {
		t.Error("message should be delivered after ack")
	}

	// Repeat ack is idempotent.
	updates := store.updates
	if err := service.OnDeliveredAck(ctx, "m1", "u2"); err != nil {
		t.Fatalf("repeat ack unexpected error: %v", err)
	}
	if store.updates != updates {
		t.Error("repeat ack must not rewrite flags")
	}
}

func TestService_OnDeliveredAck_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		acker   string
		wantErr error
	}{
		{name: "sender acks own message", acker: "u1", wantErr: ErrOwnMessage},
		{name: "third party acks", acker: "u3", wantErr: ErrNotRecipient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(directMessage("m1", "u1", "u2"))
			service := NewService(store, &fakeUsers{}, nil)

			err := service.OnDeliveredAck(ctx, "m1", tt.acker)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("OnDeliveredAck() error = %v, want %v", err, tt.wantErr)
			}
			msg, _ := store.GetMessage(ctx, "m1")
			if msg.Delivered {
				t.Error("rejected ack must not set the delivered flag")
			}
		})
	}
}

func TestService_OnRead(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(directMessage("m1", "u1", "u2"))
	service := NewService(store, &fakeUsers{}, nil)

	if err := service.OnRead(ctx, "m1", "u2"); err != nil {
		t.Fatalf("OnRead() unexpected error: %v", err)
	}

	msg, _ := store.GetMessage(ctx, "m1")
	if !msg.Delivered || !msg.Read {
		t.Error("read must set both delivered and read")
	}
	if msg.ReadAt == nil {
		t.Error("read must record the read timestamp")
	}

	// Repeat read is a no-op.
	updates := store.updates
	if err := service.OnRead(ctx, "m1", "u2"); err != nil {
		t.Fatalf("repeat read unexpected error: %v", err)
	}
	if store.updates != updates {
		t.Error("repeat read must not rewrite flags")
	}
}

func TestService_OnRead_GroupMembership(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		reader  string
		member  bool
		wantErr error
	}{
		{name: "member reads", reader: "u2", member: true, wantErr: nil},
		{name: "non-member rejected", reader: "u3", member: false, wantErr: ErrNotRecipient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(&chat.Message{
				ID:       "m1",
				Channel:  chat.GroupRef("g1"),
				SenderID: "u1",
			})
			users := &fakeUsers{members: map[string]bool{}}
			if tt.member {
				users.members["g1:"+tt.reader] = true
			}
			service := NewService(store, users, nil)

			err := service.OnRead(ctx, "m1", tt.reader)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("OnRead() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_OnRead_UnknownMessage(t *testing.T) {
	service := NewService(newFakeStore(), &fakeUsers{}, nil)

	err := service.OnRead(context.Background(), "missing", "u2")
	if !errors.Is(err, history.ErrMessageNotFound) {
		t.Errorf("OnRead() error = %v, want ErrMessageNotFound", err)
	}
}

func TestService_MarkChannelRead_GroupRequiresMembership(t *testing.T) {
	ctx := context.Background()
	service := NewService(newFakeStore(), &fakeUsers{members: map[string]bool{}}, nil)

	_, err := service.MarkChannelRead(ctx, chat.GroupRef("g1"), "u3")
	if !errors.Is(err, ErrNotRecipient) {
		t.Errorf("MarkChannelRead() error = %v, want ErrNotRecipient", err)
	}
}
