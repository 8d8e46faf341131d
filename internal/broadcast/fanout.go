package broadcast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"presencego/internal/services/presence"
)

// ErrConnGone is returned by a Sender when the target connection is no
// longer registered with the transport.
var ErrConnGone = errors.New("connection gone")

// Sender is the transport's point-to-point push primitive.
type Sender interface {
	Send(connID string, data []byte) error
}

// Person is how one member appears in outbound payloads. ID is a one-way
// digest: the raw connection id never leaves the process.
type Person struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Payload is the per-recipient broadcast frame.
type Payload struct {
	Event     string   `json:"event"`
	Name      string   `json:"name"`
	AllPeople []Person `json:"allPeople"`
}

// Digest anonymizes a connection id for client-side diffing.
func Digest(connID string) string {
	sum := sha256.Sum256([]byte(connID))
	return hex.EncodeToString(sum[:])
}

// Fanout turns one membership-changed event into one point-to-point send
// per member.
type Fanout struct {
	sender   Sender
	registry presence.IPresenceService
}

func NewFanout(sender Sender, registry presence.IPresenceService) *Fanout {
	return &Fanout{sender: sender, registry: registry}
}

// Broadcast pushes the event to every member of the snapshot in parallel.
// Sends are independent: one unreachable recipient never blocks the rest.
// The call waits for all attempts, then returns the aggregate of every
// per-recipient failure (nil only if all succeeded). There are no retries.
//
// A send failing with ErrConnGone means the transport has already dropped
// that connection, so the member is pruned from the registry to bring the
// membership set back in line with transport reality.
func (f *Fanout) Broadcast(ctx context.Context, roomKey, kind, actor string, members []presence.Member) error {
	data, err := json.Marshal(Payload{
		Event: kind,
		Name:  actor,
		AllPeople: lo.Map(members, func(m presence.Member, _ int) Person {
			return Person{Name: m.Name, ID: Digest(m.ConnectionID)}
		}),
	})
	if err != nil {
		return fmt.Errorf("encode broadcast payload: %w", err)
	}

	var (
		mu   sync.Mutex
		agg  error
		gone []presence.Member
		wg   sync.WaitGroup
	)
	for _, m := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.sender.Send(m.ConnectionID, data)
			if err == nil {
				return
			}
			mu.Lock()
			agg = multierr.Append(agg, fmt.Errorf("send to %s: %w", m.ConnectionID, err))
			if errors.Is(err, ErrConnGone) {
				gone = append(gone, m)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, m := range gone {
		if _, _, err := f.registry.Leave(ctx, roomKey, m.ConnectionID); err != nil &&
			!errors.Is(err, presence.ErrUnknownLeaver) {
			zap.L().Warn("fanout.prune_failed",
				zap.String("room", roomKey),
				zap.String("conn_id", m.ConnectionID),
				zap.Error(err))
		}
	}
	return agg
}
