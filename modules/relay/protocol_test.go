package relay

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	chat "github.com/example/team-chat-demo/domain/chat"
)

func TestSendPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload SendPayload
		wantErr error
	}{
		{
			name:    "valid direct message",
			payload: SendPayload{Channel: chat.DirectRef("u2"), Body: "hello"},
			wantErr: nil,
		},
		{
			name:    "valid room message",
			payload: SendPayload{Channel: chat.RoomRef("general"), Body: "hi"},
			wantErr: nil,
		},
		{
			name:    "empty body",
			payload: SendPayload{Channel: chat.DirectRef("u2"), Body: "   "},
			wantErr: errEmptyBody,
		},
		{
			name:    "body too long",
			payload: SendPayload{Channel: chat.DirectRef("u2"), Body: strings.Repeat("x", MaxBodyLength+1)},
			wantErr: errBodyTooLong,
		},
		{
			name:    "direct without peer",
			payload: SendPayload{Channel: chat.ChannelRef{Kind: chat.ChannelDirect}, Body: "hello"},
			wantErr: chat.ErrMissingPeer,
		},
		{
			name:    "unknown channel kind",
			payload: SendPayload{Channel: chat.ChannelRef{Kind: "broadcast"}, Body: "hello"},
			wantErr: chat.ErrUnknownChannelKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientEvent_Decode(t *testing.T) {
	raw := `{"type":"send","payload":{"channel":{"type":"direct","peer_id":"u2"},"body":"hello"}}`

	var event ClientEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if event.Type != ClientSend {
		t.Errorf("Type = %q, want %q", event.Type, ClientSend)
	}

	var payload SendPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("payload Unmarshal() error: %v", err)
	}
	if payload.Channel.PeerID != "u2" || payload.Body != "hello" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestServerEvent_ErrorEnvelope(t *testing.T) {
	event := newErrorEvent("boom")

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var decoded ServerEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if decoded.Type != ServerError || decoded.Error != "boom" {
		t.Errorf("unexpected envelope: %+v", decoded)
	}
}
