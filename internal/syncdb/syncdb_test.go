package syncdb

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

type fakeDirectory struct {
	keys     []string
	keysErr  error
	written  map[string]int
	writeErr error
}

func newFakeDirectory(keys ...string) *fakeDirectory {
	return &fakeDirectory{keys: keys, written: map[string]int{}}
}

func (f *fakeDirectory) Keys(context.Context) ([]string, error) {
	return f.keys, f.keysErr
}

func (f *fakeDirectory) SetOccupancy(_ context.Context, key string, occupancy int) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written[key] = occupancy
	return nil
}

func TestSyncOnceMirrorsCounts(t *testing.T) {
	db, mock := redismock.NewClientMock()
	dir := newFakeDirectory("lobby", "standup")

	mock.ExpectSCard("room:lobby:members").SetVal(3)
	mock.ExpectSCard("room:standup:members").SetVal(0)

	syncOnce(context.Background(), db, dir)

	assert.Equal(t, map[string]int{"lobby": 3, "standup": 0}, dir.written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncOnceNoRoomsIsANoOp(t *testing.T) {
	db, mock := redismock.NewClientMock()
	dir := newFakeDirectory()

	syncOnce(context.Background(), db, dir)

	assert.Empty(t, dir.written)
	assert.NoError(t, mock.ExpectationsWereMet(), "no Redis traffic without rooms")
}

func TestSyncOnceDirectoryFailureSkipsSweep(t *testing.T) {
	db, mock := redismock.NewClientMock()
	dir := newFakeDirectory("lobby")
	dir.keysErr = errors.New("pg down")

	syncOnce(context.Background(), db, dir)

	assert.Empty(t, dir.written)
	assert.NoError(t, mock.ExpectationsWereMet())
}
