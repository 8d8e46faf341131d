package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"presencego/internal/services/presence"
)

// Source tags every membership-changed event with its producing namespace.
const Source = "presence-room"

// Channel is the per-room event channel. Room keys never contain ':', so
// subscribers can recover the room key by splitting the channel name.
func Channel(roomKey string) string { return "presence:" + roomKey + ":events" }

// ChannelPattern matches every room's event channel.
func ChannelPattern() string { return "presence:*:events" }

// Event is the bus message produced for each committed registry mutation.
type Event struct {
	Source     string `json:"source"`
	DetailType string `json:"detailType"`
	Detail     Detail `json:"detail"`
}

type Detail struct {
	Name      string            `json:"name"`
	AllPeople []presence.Member `json:"allPeople"`
}

// RedisNotifier publishes membership-changed events over pub/sub.
// Publishing is fire-and-forget: a failure is surfaced to the caller but
// never rolls back the mutation that produced the snapshot.
type RedisNotifier struct {
	rdc *redis.Client
}

var _ presence.Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(rdc *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdc: rdc}
}

func (n *RedisNotifier) Emit(ctx context.Context, roomKey, kind, actor string, members []presence.Member) error {
	payload, err := json.Marshal(Event{
		Source:     Source,
		DetailType: kind,
		Detail:     Detail{Name: actor, AllPeople: members},
	})
	if err != nil {
		return fmt.Errorf("encode membership event: %w", err)
	}
	if err := n.rdc.Publish(ctx, Channel(roomKey), payload).Err(); err != nil {
		return fmt.Errorf("publish membership event: %w", err)
	}
	return nil
}
