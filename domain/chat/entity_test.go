package chat

import (
	"encoding/json"
	"testing"
)

func TestChannelRef_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ref     ChannelRef
		wantErr error
	}{
		{name: "valid direct", ref: DirectRef("u2"), wantErr: nil},
		{name: "valid group", ref: GroupRef("g1"), wantErr: nil},
		{name: "valid room", ref: RoomRef("general"), wantErr: nil},
		{name: "direct without peer", ref: ChannelRef{Kind: ChannelDirect}, wantErr: ErrMissingPeer},
		{name: "group without id", ref: ChannelRef{Kind: ChannelGroup}, wantErr: ErrMissingGroup},
		{name: "room with blank name", ref: ChannelRef{Kind: ChannelRoom, Room: "   "}, wantErr: ErrMissingRoom},
		{name: "unknown kind", ref: ChannelRef{Kind: "broadcast"}, wantErr: ErrUnknownChannelKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.ref.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChannelRef_Key(t *testing.T) {
	// Both sides of a direct pair must resolve to the same key.
	fromA := DirectRef("bob").Key("alice")
	fromB := DirectRef("alice").Key("bob")
	if fromA != fromB {
		t.Errorf("direct keys differ: %q vs %q", fromA, fromB)
	}
	if fromA != "direct:alice:bob" {
		t.Errorf("unexpected direct key %q", fromA)
	}

	if got := GroupRef("g1").Key("anyone"); got != "group:g1" {
		t.Errorf("unexpected group key %q", got)
	}
	if got := RoomRef("general").Key("anyone"); got != "room:general" {
		t.Errorf("unexpected room key %q", got)
	}
}

func TestChannelRef_JSONRoundTrip(t *testing.T) {
	ref := GroupRef("g42")
	data, err := json.Marshal(ref)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded ChannelRef
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != ref {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, ref)
	}
}
