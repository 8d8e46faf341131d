package broadcast

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"presencego/internal/notifier"
)

// Subscribe tails every room's membership-changed channel and fans each
// message out.
func Subscribe(ctx context.Context, rdc *redis.Client, f *Fanout) {
	pubsub := rdc.PSubscribe(ctx, notifier.ChannelPattern())
	defer pubsub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			handleEvent(ctx, f, m.Channel, m.Payload)
		}
	}
}

// handleEvent fans one bus message out to the room named by its channel.
// Messages that are not membership-changed events (malformed channel or
// payload) are dropped. A partial fan-out failure is logged and the loop
// moves on: delivery is best-effort, the next membership change carries
// an absolute snapshot anyway.
func handleEvent(ctx context.Context, f *Fanout, channel, payload string) {
	// channel format: "presence:<roomKey>:events"
	parts := strings.Split(channel, ":")
	if len(parts) != 3 {
		return
	}
	roomKey := parts[1]

	var ev notifier.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		zap.L().Warn("broadcast.decode_event", zap.Error(err))
		return
	}
	if err := f.Broadcast(ctx, roomKey, ev.DetailType, ev.Detail.Name, ev.Detail.AllPeople); err != nil {
		zap.L().Warn("broadcast.partial_failure",
			zap.String("room", roomKey),
			zap.String("kind", ev.DetailType),
			zap.Error(err))
	}
}
