package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type RoomDTO struct {
	Key       string    `json:"key"        example:"lobby"`
	Title     string    `json:"title"      example:"The Lobby"`
	Occupancy int       `json:"occupancy"  example:"3"`
	CreatedAt time.Time `json:"created_at" example:"2025-07-27T16:05:05Z"`
	UpdatedAt time.Time `json:"updated_at" example:"2025-07-27T16:05:05Z"`
}

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")

	// Room keys appear inside pub/sub channel names (':' delimited) and
	// alongside membership tokens ('#' separated), so both are banned.
	ErrInvalidRoomKey = errors.New("room key contains reserved character")
)

type IRoomService interface {
	CreateRoom(ctx context.Context, key, title string) error
	GetRoom(ctx context.Context, key string) (*RoomDTO, error)
	ListRooms(ctx context.Context, limit, offset int) ([]RoomDTO, error)
	EnsureRoom(ctx context.Context, key string) error
	SetOccupancy(ctx context.Context, key string, occupancy int) error
	Keys(ctx context.Context) ([]string, error)
}

type roomService struct {
	db *sql.DB
}

func NewRoomService(db *sql.DB) IRoomService {
	return &roomService{db: db}
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, ":#") {
		return fmt.Errorf("%w: %q", ErrInvalidRoomKey, key)
	}
	return nil
}

func (svc *roomService) CreateRoom(ctx context.Context, key, title string) error {
	if err := validKey(key); err != nil {
		return err
	}
	const q = `
	  INSERT INTO rooms (key, title, occupancy, created_at, updated_at)
	       VALUES ($1, $2, 0, now(), now())
	  ON CONFLICT (key) DO NOTHING`
	res, err := svc.db.ExecContext(ctx, q, key, title)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomExists
	}
	return nil
}

// EnsureRoom is the idempotent variant used at boot for the default room.
func (svc *roomService) EnsureRoom(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	const q = `
	  INSERT INTO rooms (key, title, occupancy, created_at, updated_at)
	       VALUES ($1, $1, 0, now(), now())
	  ON CONFLICT (key) DO NOTHING`
	_, err := svc.db.ExecContext(ctx, q, key)
	return err
}

func (svc *roomService) GetRoom(ctx context.Context, key string) (*RoomDTO, error) {
	const q = `SELECT key, title, occupancy, created_at, updated_at
	             FROM rooms WHERE key = $1`
	row := svc.db.QueryRowContext(ctx, q, key)
	dto := &RoomDTO{}
	if err := row.Scan(&dto.Key, &dto.Title, &dto.Occupancy,
		&dto.CreatedAt, &dto.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, key)
		}
		return nil, err
	}
	return dto, nil
}

func (svc *roomService) ListRooms(ctx context.Context, limit, offset int) ([]RoomDTO, error) {
	if limit == 0 {
		limit = 10
	}
	const q = `SELECT key, title, occupancy, created_at, updated_at
	             FROM rooms ORDER BY key LIMIT $1 OFFSET $2`
	rows, err := svc.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]RoomDTO, 0, limit)
	for rows.Next() {
		var r RoomDTO
		if err := rows.Scan(&r.Key, &r.Title, &r.Occupancy,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// SetOccupancy mirrors a room's live member count into the directory.
// The update is skipped server-side when the count is unchanged.
func (svc *roomService) SetOccupancy(ctx context.Context, key string, occupancy int) error {
	const q = `UPDATE rooms SET occupancy = $2, updated_at = now()
	            WHERE key = $1 AND occupancy <> $2`
	_, err := svc.db.ExecContext(ctx, q, key, occupancy)
	return err
}

// Keys lists every registered room key; the occupancy mirror and the
// lease reaper iterate over it.
func (svc *roomService) Keys(ctx context.Context) ([]string, error) {
	rows, err := svc.db.QueryContext(ctx, `SELECT key FROM rooms ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
