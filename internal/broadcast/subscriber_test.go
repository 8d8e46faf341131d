package broadcast

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presencego/internal/notifier"
	"presencego/internal/services/presence"
)

func membershipEvent(t *testing.T, kind, actor string, members []presence.Member) string {
	t.Helper()
	raw, err := json.Marshal(notifier.Event{
		Source:     notifier.Source,
		DetailType: kind,
		Detail:     notifier.Detail{Name: actor, AllPeople: members},
	})
	require.NoError(t, err)
	return string(raw)
}

func TestHandleEventFansOutToRoomMembers(t *testing.T) {
	sender := newFakeSender()
	f := NewFanout(sender, &fakeRegistry{})

	members := []presence.Member{
		{Name: "alice", ConnectionID: "c1"},
		{Name: "bob", ConnectionID: "c2"},
	}
	handleEvent(context.Background(), f, notifier.Channel("lobby"),
		membershipEvent(t, presence.KindJoined, "bob", members))

	require.Len(t, sender.sent, 2)

	var p Payload
	require.NoError(t, json.Unmarshal(sender.sent["c1"], &p))
	assert.Equal(t, presence.KindJoined, p.Event)
	assert.Equal(t, "bob", p.Name)
}

func TestHandleEventDropsMalformedChannels(t *testing.T) {
	sender := newFakeSender()
	f := NewFanout(sender, &fakeRegistry{})

	payload := membershipEvent(t, presence.KindJoined, "bob",
		[]presence.Member{{Name: "bob", ConnectionID: "c2"}})

	for _, channel := range []string{
		"presence:lobby",         // too few parts
		"presence:a:b:events",    // too many parts
		"__keyevent@0__:expired", // foreign channel
	} {
		handleEvent(context.Background(), f, channel, payload)
	}
	assert.Empty(t, sender.sent)
}

func TestHandleEventDropsMalformedPayloads(t *testing.T) {
	sender := newFakeSender()
	f := NewFanout(sender, &fakeRegistry{})

	handleEvent(context.Background(), f, notifier.Channel("lobby"), `{not json`)
	assert.Empty(t, sender.sent)
}
