package connwatcher

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"presencego/internal/services/presence"
	"presencego/internal/store"
)

// RoomLister supplies the room keys to sweep; the Postgres room directory
// implements it.
type RoomLister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Run sweeps every room on a fixed cadence and evicts members whose
// presence lease has lapsed. A gateway that dies without delivering its
// disconnect events leaves ghost tokens behind; their conn records expire
// on their own, and this sweep removes the tokens and emits the missed
// person-left events.
// Run must be started once at service boot.
func Run(ctx context.Context, rdc *redis.Client, rooms RoomLister, svc presence.IPresenceService, every time.Duration) {
	tk := time.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			sweep(ctx, rdc, rooms, svc)
		}
	}
}

func sweep(ctx context.Context, rdc *redis.Client, rooms RoomLister, svc presence.IPresenceService) {
	keys, err := rooms.Keys(ctx)
	if err != nil {
		zap.L().Warn("connwatcher.rooms", zap.Error(err))
		return
	}

	for _, roomKey := range keys {
		members, err := svc.Members(ctx, roomKey)
		if err != nil {
			zap.L().Warn("connwatcher.members", zap.String("room", roomKey), zap.Error(err))
			continue
		}
		if len(members) == 0 {
			continue
		}

		// One EXISTS per member, pipelined.
		pipe := rdc.Pipeline()
		cmds := make([]*redis.IntCmd, len(members))
		for i, m := range members {
			cmds[i] = pipe.Exists(ctx, store.ConnKey(m.ConnectionID))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			zap.L().Warn("connwatcher.pipeline", zap.String("room", roomKey), zap.Error(err))
			continue
		}

		for i, cmd := range cmds {
			n, err := cmd.Result()
			if err != nil || n > 0 {
				continue
			}
			m := members[i]
			if _, err := svc.Evict(ctx, roomKey, m); err != nil {
				zap.L().Warn("connwatcher.evict",
					zap.String("room", roomKey),
					zap.String("conn_id", m.ConnectionID),
					zap.Error(err))
				continue
			}
			zap.L().Info("connwatcher.evicted_stale",
				zap.String("room", roomKey),
				zap.String("name", m.Name))
		}
	}
}
