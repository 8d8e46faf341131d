package notifier

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presencego/internal/services/presence"
)

func TestEmitPublishesEventEnvelope(t *testing.T) {
	db, mock := redismock.NewClientMock()
	n := NewRedisNotifier(db)

	members := []presence.Member{
		{Name: "alice", ConnectionID: "c1"},
		{Name: "bob", ConnectionID: "c2"},
	}
	expected, err := json.Marshal(Event{
		Source:     Source,
		DetailType: presence.KindJoined,
		Detail:     Detail{Name: "bob", AllPeople: members},
	})
	require.NoError(t, err)

	mock.ExpectPublish("presence:lobby:events", expected).SetVal(2)

	err = n.Emit(context.Background(), "lobby", presence.KindJoined, "bob", members)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventEnvelopeRoundTrip(t *testing.T) {
	ev := Event{
		Source:     Source,
		DetailType: presence.KindLeft,
		Detail: Detail{
			Name:      "alice",
			AllPeople: []presence.Member{{Name: "bob", ConnectionID: "c2"}},
		},
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"source": "presence-room",
		"detailType": "person-left",
		"detail": {
			"name": "alice",
			"allPeople": [{"name": "bob", "connectionId": "c2"}]
		}
	}`, string(raw))

	var back Event
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, ev, back)
}

func TestChannelNaming(t *testing.T) {
	assert.Equal(t, "presence:lobby:events", Channel("lobby"))
	assert.Equal(t, "presence:*:events", ChannelPattern())
}
