package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	connKeyPrefix      = "conn:"
	memberSetKeyPrefix = "room:"
	memberSetKeySuffix = ":members"
)

// ErrConnNotFound is returned when no record exists for a connection id,
// e.g. a disconnect for a connection that never completed its join or
// whose presence lease already expired.
var ErrConnNotFound = errors.New("connection record not found")

// ConnKey is the per-connection record key (connection id -> display name).
func ConnKey(connID string) string { return connKeyPrefix + connID }

// MemberSetKey is the key of a room's membership set. The set is only
// ever mutated through SADD/SREM so concurrent joins and leaves never
// lose each other's updates.
func MemberSetKey(roomKey string) string {
	return memberSetKeyPrefix + roomKey + memberSetKeySuffix
}

// ConnStore keeps one record per live connection plus one membership set
// per room, both in Redis.
type ConnStore struct {
	rdc *redis.Client
	ttl time.Duration
}

// New returns a store whose connection records carry a presence lease of
// ttl; the lease is refreshed via Touch and reaped when it lapses.
func New(rdc *redis.Client, ttl time.Duration) *ConnStore {
	return &ConnStore{rdc: rdc, ttl: ttl}
}

// SaveName creates the connection record.
func (s *ConnStore) SaveName(ctx context.Context, connID, name string) error {
	if err := s.rdc.Set(ctx, ConnKey(connID), name, s.ttl).Err(); err != nil {
		return fmt.Errorf("save connection %s: %w", connID, err)
	}
	return nil
}

// GetDelName deletes the connection record and returns the display name
// that was stored at join time, in one round-trip.
func (s *ConnStore) GetDelName(ctx context.Context, connID string) (string, error) {
	name, err := s.rdc.GetDel(ctx, ConnKey(connID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrConnNotFound, connID)
	}
	if err != nil {
		return "", fmt.Errorf("delete connection %s: %w", connID, err)
	}
	return name, nil
}

// Touch refreshes the presence lease on a connection record.
func (s *ConnStore) Touch(ctx context.Context, connID string) error {
	ok, err := s.rdc.Expire(ctx, ConnKey(connID), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("touch connection %s: %w", connID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnNotFound, connID)
	}
	return nil
}

// AddMember adds one membership token to the room's set and returns the
// post-add snapshot. SADD and SMEMBERS run in one MULTI/EXEC block so the
// snapshot is exactly the set this add produced.
func (s *ConnStore) AddMember(ctx context.Context, roomKey, token string) ([]string, error) {
	pipe := s.rdc.TxPipeline()
	pipe.SAdd(ctx, MemberSetKey(roomKey), token)
	membersCmd := pipe.SMembers(ctx, MemberSetKey(roomKey))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("add member to %s: %w", roomKey, err)
	}
	return membersCmd.Result()
}

// RemoveMember removes one membership token and returns the post-remove
// snapshot.
func (s *ConnStore) RemoveMember(ctx context.Context, roomKey, token string) ([]string, error) {
	pipe := s.rdc.TxPipeline()
	pipe.SRem(ctx, MemberSetKey(roomKey), token)
	membersCmd := pipe.SMembers(ctx, MemberSetKey(roomKey))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("remove member from %s: %w", roomKey, err)
	}
	return membersCmd.Result()
}

// Members returns the current membership tokens of a room.
func (s *ConnStore) Members(ctx context.Context, roomKey string) ([]string, error) {
	tokens, err := s.rdc.SMembers(ctx, MemberSetKey(roomKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", roomKey, err)
	}
	return tokens, nil
}

// Occupancy returns the current member count of a room.
func (s *ConnStore) Occupancy(ctx context.Context, roomKey string) (int64, error) {
	n, err := s.rdc.SCard(ctx, MemberSetKey(roomKey)).Result()
	if err != nil {
		return 0, fmt.Errorf("occupancy of %s: %w", roomKey, err)
	}
	return n, nil
}
