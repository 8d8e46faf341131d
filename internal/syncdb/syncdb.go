package syncdb

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"presencego/internal/store"
)

// Directory is the room-directory surface the mirror writes through; the
// Postgres room service implements it.
type Directory interface {
	Keys(ctx context.Context) ([]string, error)
	SetOccupancy(ctx context.Context, key string, occupancy int) error
}

// Run mirrors each room's live occupancy into the directory on a fixed
// cadence. The mirror is current-state only: how many are in the room
// right now, never who was in it when.
func Run(ctx context.Context, rdc *redis.Client, dir Directory, every time.Duration) {
	tk := time.NewTicker(every)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				syncOnce(ctx, rdc, dir)
			}
		}
	}()
}

func syncOnce(ctx context.Context, rdc *redis.Client, dir Directory) {
	keys, err := dir.Keys(ctx)
	if err != nil {
		zap.L().Error("syncdb.keys", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}

	// 1. fetch all occupancy counts in one pipelined round-trip
	pipe := rdc.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.SCard(ctx, store.MemberSetKey(k))
	}

	if _, err = pipe.Exec(ctx); err != nil {
		zap.L().Error("syncdb.pipeline", zap.Error(err))
		return
	}

	// 2. write the counts back through the directory
	for i, cmd := range cmds {
		n, err := cmd.Result()
		if err != nil {
			continue // key disappeared between Keys and SCARD
		}
		if err := dir.SetOccupancy(ctx, keys[i], int(n)); err != nil {
			zap.L().Error("syncdb.update", zap.String("key", keys[i]), zap.Error(err))
		}
	}
}
