package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	chat "github.com/example/team-chat-demo/domain/chat"
	"github.com/example/team-chat-demo/modules/delivery"
	"github.com/example/team-chat-demo/modules/directory"
	"github.com/example/team-chat-demo/modules/history"
	"github.com/example/team-chat-demo/modules/presence"
)

// fakeStore is an in-memory HistoryPort.
type fakeStore struct {
	messages map[string]*chat.Message
	failing  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[string]*chat.Message)}
}

func (f *fakeStore) InsertMessage(_ context.Context, msg *chat.Message) (string, error) {
	if f.failing {
		return "", errors.New("store unavailable")
	}
	copied := *msg
	f.messages[msg.ID] = &copied
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
	return nil
}

func (f *fakeStore) FetchHistory(context.Context, chat.ChannelRef, string, int, int) ([]chat.Message, error) {
	return nil, nil
}

func (f *fakeStore) MarkChannelRead(_ context.Context, _ chat.ChannelRef, readerID string) (int64, error) {
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

func (f *fakeStore) UnreadCounts(context.Context, string) (map[string]int64, error) {
	return nil, nil
}

// fakeDirectory answers user and membership lookups from maps.
type fakeDirectory struct {
	users   map[string]chat.UserIdentity
	members map[string][]chat.UserIdentity // groupID -> roster
}

func (f *fakeDirectory) GetUser(_ context.Context, userID string) (*chat.UserIdentity, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return &user, nil
}

func (f *fakeDirectory) IsGroupMember(_ context.Context, groupID, userID string) (bool, error) {
	for _, member := range f.members[groupID] {
		if member.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDirectory) ListGroupMembers(_ context.Context, groupID string) ([]chat.UserIdentity, []string, error) {
	return f.members[groupID], nil, nil
}

func (f *fakeDirectory) ResolveToken(_ context.Context, token string) (*chat.UserIdentity, error) {
	user, ok := f.users[token]
	if !ok {
		return nil, directory.ErrInvalidToken
	}
	return &user, nil
}

func (f *fakeDirectory) ListContacts(context.Context, string) ([]chat.UserIdentity, error) {
	return nil, nil
}
func (f *fakeDirectory) Login(context.Context, string, string) (string, *chat.UserIdentity, error) {
	return "", nil, directory.ErrLoginFailed
}
func (f *fakeDirectory) CreateGroup(context.Context, string, string) (*directory.GroupSummary, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeDirectory) ListGroups(context.Context, string) ([]directory.GroupSummary, error) {
	return nil, nil
}

var (
	testAlice = chat.UserIdentity{ID: "u-alice", Username: "alice", OrganizationID: "acme"}
	testBob   = chat.UserIdentity{ID: "u-bob", Username: "bob", OrganizationID: "acme"}
	testCarol = chat.UserIdentity{ID: "u-carol", Username: "carol", OrganizationID: "acme"}
)

func newTestModule(store *fakeStore, users *fakeDirectory) *Module {
	m := NewModule()
	m.store = store
	m.users = users
	m.presence = presence.NewModule()
	m.receipts = delivery.NewService(store, users, nil)
	return m
}

// connect registers a fake connection and announces it under identity.
func connect(m *Module, connID string, identity chat.UserIdentity) *fakeConn {
	fake := &fakeConn{}
	m.hub.Add(NewConnection(connID, fake))
	m.presence.Tracker().Announce(connID, identity)
	return fake
}

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func eventTypes(events []ServerEvent) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func countType(events []ServerEvent, eventType string) int {
	n := 0
	for _, e := range events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func TestHandleSend_DirectWithLiveReceiver(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	users := &fakeDirectory{users: map[string]chat.UserIdentity{
		testAlice.ID: testAlice,
		testBob.ID:   testBob,
	}}
	m := newTestModule(store, users)

	sender := connect(m, "c1", testAlice)
	device1 := connect(m, "c2", testBob)
	device2 := connect(m, "c3", testBob)

	conn := m.hub.conns["c1"]
	limiter := newRateLimiter(burstSize, messagesPerSecond)
	m.handleSend(ctx, conn, limiter, rawPayload(t, SendPayload{
		Channel: chat.DirectRef(testBob.ID),
		Body:    "hello bob",
	}))

	// Both receiver devices get the message.
	for name, fake := range map[string]*fakeConn{"device1": device1, "device2": device2} {
		if got := countType(fake.received(), ServerMessage); got != 1 {
			t.Errorf("%s received %d message events, want 1 (%v)", name, got, eventTypes(fake.received()))
		}
	}

	// Sender gets a sent ack and no echoed message.
	senderEvents := sender.received()
	if countType(senderEvents, ServerSent) != 1 {
		t.Errorf("sender events = %v, want one sent ack", eventTypes(senderEvents))
	}
	if countType(senderEvents, ServerMessage) != 0 {
		t.Errorf("sender must not receive a message echo, got %v", eventTypes(senderEvents))
	}

	// The message is persisted and marked delivered.
	if len(store.messages) != 1 {
		t.Fatalf("store holds %d messages, want 1", len(store.messages))
	}
	for _, msg := range store.messages {
		if !msg.Delivered {
			t.Error("message with a live receiver should be delivered")
		}
		if msg.Read {
			t.Error("message should not be read yet")
		}
	}
}

func TestHandleSend_DirectOfflineReceiver(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	users := &fakeDirectory{users: map[string]chat.UserIdentity{
		testAlice.ID: testAlice,
		testBob.ID:   testBob,
	}}
	m := newTestModule(store, users)

	connect(m, "c1", testAlice)
	conn := m.hub.conns["c1"]

	m.handleSend(ctx, conn, newRateLimiter(burstSize, messagesPerSecond), rawPayload(t, SendPayload{
		Channel: chat.DirectRef(testBob.ID),
		Body:    "anyone there?",
	}))

	if len(store.messages) != 1 {
		t.Fatalf("store holds %d messages, want 1", len(store.messages))
	}
	for _, msg := range store.messages {
		if msg.Delivered {
			t.Error("message to an offline receiver must stay undelivered")
		}
	}
}

func TestHandleSend_GroupSkipsOriginatingConnection(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	users := &fakeDirectory{
		users: map[string]chat.UserIdentity{
			testAlice.ID: testAlice,
			testBob.ID:   testBob,
		},
		members: map[string][]chat.UserIdentity{
			"g1": {testAlice, testBob},
		},
	}
	m := newTestModule(store, users)

	sender := connect(m, "c1", testAlice)
	otherDevice := connect(m, "c2", testAlice)
	bob := connect(m, "c3", testBob)

	conn := m.hub.conns["c1"]
	m.handleSend(ctx, conn, newRateLimiter(burstSize, messagesPerSecond), rawPayload(t, SendPayload{
		Channel: chat.GroupRef("g1"),
		Body:    "hi team",
	}))

	if countType(sender.received(), ServerMessage) != 0 {
		t.Error("originating connection must not receive the group message")
	}
	if countType(otherDevice.received(), ServerMessage) != 1 {
		t.Error("sender's other device should receive the group message")
	}
	if countType(bob.received(), ServerMessage) != 1 {
		t.Error("group member should receive the message")
	}
}

func TestHandleSend_GroupRequiresMembership(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	users := &fakeDirectory{
		users:   map[string]chat.UserIdentity{testCarol.ID: testCarol},
		members: map[string][]chat.UserIdentity{"g1": {testAlice, testBob}},
	}
	m := newTestModule(store, users)

	carol := connect(m, "c1", testCarol)
	conn := m.hub.conns["c1"]

	m.handleSend(ctx, conn, newRateLimiter(burstSize, messagesPerSecond), rawPayload(t, SendPayload{
		Channel: chat.GroupRef("g1"),
		Body:    "let me in",
	}))

	if countType(carol.received(), ServerError) != 1 {
		t.Errorf("non-member send should fail, got %v", eventTypes(carol.received()))
	}
	if len(store.messages) != 0 {
		t.Error("rejected message must not be persisted")
	}
}

func TestHandleSend_RoomIncludesSender(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	users := &fakeDirectory{users: map[string]chat.UserIdentity{
		testAlice.ID: testAlice,
		testBob.ID:   testBob,
	}}
	m := newTestModule(store, users)

	sender := connect(m, "c1", testAlice)
	bob := connect(m, "c2", testBob)
	outsider := connect(m, "c3", testCarol)

	m.hub.JoinRoom("c1", "general")
	m.hub.JoinRoom("c2", "general")

	conn := m.hub.conns["c1"]
	m.handleSend(ctx, conn, newRateLimiter(burstSize, messagesPerSecond), rawPayload(t, SendPayload{
		Channel: chat.RoomRef("general"),
		Body:    "hello room",
	}))

	if countType(sender.received(), ServerMessage) != 1 {
		t.Error("room sender should receive the message through the room")
	}
	if countType(bob.received(), ServerMessage) != 1 {
		t.Error("room member should receive the message")
	}
	if countType(outsider.received(), ServerMessage) != 0 {
		t.Error("connection outside the room must not receive the message")
	}
}

func TestHandleSend_RoomRequiresJoin(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	users := &fakeDirectory{users: map[string]chat.UserIdentity{testAlice.ID: testAlice}}
	m := newTestModule(store, users)

	alice := connect(m, "c1", testAlice)
	conn := m.hub.conns["c1"]

	m.handleSend(ctx, conn, newRateLimiter(burstSize, messagesPerSecond), rawPayload(t, SendPayload{
		Channel: chat.RoomRef("general"),
		Body:    "knock knock",
	}))

	if countType(alice.received(), ServerError) != 1 {
		t.Errorf("sending to an unjoined room should fail, got %v", eventTypes(alice.received()))
	}
}

func TestHandleSend_StoreFailureStillRelays(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failing = true
	users := &fakeDirectory{users: map[string]chat.UserIdentity{
		testAlice.ID: testAlice,
		testBob.ID:   testBob,
	}}
	m := newTestModule(store, users)

	connect(m, "c1", testAlice)
	bob := connect(m, "c2", testBob)

	conn := m.hub.conns["c1"]
	m.handleSend(ctx, conn, newRateLimiter(burstSize, messagesPerSecond), rawPayload(t, SendPayload{
		Channel: chat.DirectRef(testBob.ID),
		Body:    "still here",
	}))

	if countType(bob.received(), ServerMessage) != 1 {
		t.Errorf("receiver should get the message despite the store failure, got %v", eventTypes(bob.received()))
	}
}

func TestHandleSend_RequiresAnnounce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	m := newTestModule(store, &fakeDirectory{})

	fake := &fakeConn{}
	m.hub.Add(NewConnection("c1", fake))
	conn := m.hub.conns["c1"]

	m.handleSend(ctx, conn, newRateLimiter(burstSize, messagesPerSecond), rawPayload(t, SendPayload{
		Channel: chat.DirectRef("u2"),
		Body:    "hello",
	}))

	events := fake.received()
	if len(events) != 1 || events[0].Type != ServerError {
		t.Errorf("unannounced send should fail, got %v", eventTypes(events))
	}
}

func TestHandleSend_RateLimited(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	users := &fakeDirectory{users: map[string]chat.UserIdentity{
		testAlice.ID: testAlice,
		testBob.ID:   testBob,
	}}
	m := newTestModule(store, users)

	alice := connect(m, "c1", testAlice)
	conn := m.hub.conns["c1"]

	limiter := newRateLimiter(1, 1)
	payload := rawPayload(t, SendPayload{Channel: chat.DirectRef(testBob.ID), Body: "spam"})
	m.handleSend(ctx, conn, limiter, payload)
	m.handleSend(ctx, conn, limiter, payload)

	if countType(alice.received(), ServerError) != 1 {
		t.Errorf("second send should be rate limited, got %v", eventTypes(alice.received()))
	}
	if len(store.messages) != 1 {
		t.Errorf("store holds %d messages, want 1", len(store.messages))
	}
}

func TestHandleTyping_SuppressesRepeats(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	users := &fakeDirectory{users: map[string]chat.UserIdentity{
		testAlice.ID: testAlice,
		testBob.ID:   testBob,
	}}
	m := newTestModule(store, users)

	connect(m, "c1", testAlice)
	bob := connect(m, "c2", testBob)
	conn := m.hub.conns["c1"]

	payload := rawPayload(t, TypingPayload{Channel: chat.DirectRef(testBob.ID), Active: true})
	m.handleTyping(ctx, conn, payload)
	m.handleTyping(ctx, conn, payload)

	if got := countType(bob.received(), ServerTyping); got != 1 {
		t.Errorf("receiver got %d typing notices, want 1", got)
	}

	// Stopping fans out once more.
	m.handleTyping(ctx, conn, rawPayload(t, TypingPayload{Channel: chat.DirectRef(testBob.ID), Active: false}))
	if got := countType(bob.received(), ServerTyping); got != 2 {
		t.Errorf("receiver got %d typing notices after stop, want 2", got)
	}
}

func TestHandleMarkRead_SetsFlags(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	users := &fakeDirectory{users: map[string]chat.UserIdentity{
		testAlice.ID: testAlice,
		testBob.ID:   testBob,
	}}
	m := newTestModule(store, users)

	connect(m, "c1", testAlice)
	connect(m, "c2", testBob)

	// Alice sends to Bob, then Bob marks it read.
	sendConn := m.hub.conns["c1"]
	m.handleSend(ctx, sendConn, newRateLimiter(burstSize, messagesPerSecond), rawPayload(t, SendPayload{
		Channel: chat.DirectRef(testBob.ID),
		Body:    "read me",
	}))

	var messageID string
	for id := range store.messages {
		messageID = id
	}

	readConn := m.hub.conns["c2"]
	m.handleMarkRead(ctx, readConn, rawPayload(t, AckPayload{MessageID: messageID}))

	msg := store.messages[messageID]
	if !msg.Delivered || !msg.Read || msg.ReadAt == nil {
		t.Errorf("message flags = delivered:%v read:%v readAt:%v, want all set", msg.Delivered, msg.Read, msg.ReadAt)
	}
}

func TestHandleMarkRead_ChannelBulk(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	users := &fakeDirectory{users: map[string]chat.UserIdentity{
		testAlice.ID: testAlice,
		testBob.ID:   testBob,
	}}
	m := newTestModule(store, users)

	// Alice sends while Bob is offline; the message stays undelivered.
	connect(m, "c1", testAlice)
	sendConn := m.hub.conns["c1"]
	m.handleSend(ctx, sendConn, newRateLimiter(burstSize, messagesPerSecond), rawPayload(t, SendPayload{
		Channel: chat.DirectRef(testBob.ID),
		Body:    "catch up later",
	}))

	// Bob comes back and opens the chat.
	bob := connect(m, "c2", testBob)
	readConn := m.hub.conns["c2"]
	channel := chat.DirectRef(testAlice.ID)
	m.handleMarkRead(ctx, readConn, rawPayload(t, MarkReadPayload{Channel: &channel}))

	if countType(bob.received(), ServerError) != 0 {
		t.Errorf("bulk mark_read should succeed, got %v", eventTypes(bob.received()))
	}
	for _, msg := range store.messages {
		if !msg.Delivered || !msg.Read {
			t.Error("catch-up read must set delivered and read together")
		}
	}
}

func TestHandleAnnounce_InvalidToken(t *testing.T) {
	ctx := context.Background()
	m := newTestModule(newFakeStore(), &fakeDirectory{})

	fake := &fakeConn{}
	m.hub.Add(NewConnection("c1", fake))
	conn := m.hub.conns["c1"]

	m.handleAnnounce(ctx, conn, rawPayload(t, AnnouncePayload{Token: "bogus"}))

	events := fake.received()
	if len(events) != 1 || events[0].Type != ServerError {
		t.Errorf("invalid token should produce an error event, got %v", eventTypes(events))
	}
	if m.presence.Tracker().OnlineCount() != 0 {
		t.Error("failed announce must not mark anyone online")
	}
}

func TestHandleAnnounce_Ready(t *testing.T) {
	ctx := context.Background()
	users := &fakeDirectory{users: map[string]chat.UserIdentity{
		"token-alice": testAlice,
	}}
	m := newTestModule(newFakeStore(), users)

	fake := &fakeConn{}
	m.hub.Add(NewConnection("c1", fake))
	conn := m.hub.conns["c1"]

	m.handleAnnounce(ctx, conn, rawPayload(t, AnnouncePayload{Token: "token-alice"}))

	events := fake.received()
	if len(events) != 1 || events[0].Type != ServerReady {
		t.Fatalf("expected one ready event, got %v", eventTypes(events))
	}

	var ready ReadyPayload
	if err := json.Unmarshal(events[0].Payload, &ready); err != nil {
		t.Fatalf("decode ready payload: %v", err)
	}
	if ready.User.ID != testAlice.ID {
		t.Errorf("ready user = %q, want %q", ready.User.ID, testAlice.ID)
	}
	if !m.presence.Tracker().IsOnline(testAlice.ID) {
		t.Error("announced user should be online")
	}
}
