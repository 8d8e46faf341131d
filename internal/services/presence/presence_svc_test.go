package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presencego/internal/store"
)

const testTTL = 60 * time.Second

type fakeNotifier struct {
	kinds   []string
	actors  []string
	members [][]Member
	err     error
}

func (f *fakeNotifier) Emit(_ context.Context, _, kind, actor string, members []Member) error {
	if f.err != nil {
		return f.err
	}
	f.kinds = append(f.kinds, kind)
	f.actors = append(f.actors, actor)
	f.members = append(f.members, members)
	return nil
}

func newService(t *testing.T) (IPresenceService, redismock.ClientMock, *fakeNotifier) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	n := &fakeNotifier{}
	return NewPresenceService(store.New(db, testTTL), n), mock, n
}

func TestJoinAddsTokenAndEmits(t *testing.T) {
	svc, mock, n := newService(t)

	mock.ExpectSet("conn:c1", "alice", testTTL).SetVal("OK")
	mock.ExpectTxPipeline()
	mock.ExpectSAdd("room:lobby:members", "alice#c1").SetVal(1)
	mock.ExpectSMembers("room:lobby:members").SetVal([]string{"alice#c1"})
	mock.ExpectTxPipelineExec()

	members, err := svc.Join(context.Background(), "lobby", "c1", "alice")
	require.NoError(t, err)
	assert.Equal(t, []Member{{Name: "alice", ConnectionID: "c1"}}, members)

	require.Len(t, n.kinds, 1)
	assert.Equal(t, KindJoined, n.kinds[0])
	assert.Equal(t, "alice", n.actors[0])
	assert.Equal(t, members, n.members[0])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinDefaultsDisplayName(t *testing.T) {
	svc, mock, n := newService(t)

	mock.ExpectSet("conn:c1", "unknown", testTTL).SetVal("OK")
	mock.ExpectTxPipeline()
	mock.ExpectSAdd("room:lobby:members", "unknown#c1").SetVal(1)
	mock.ExpectSMembers("room:lobby:members").SetVal([]string{"unknown#c1"})
	mock.ExpectTxPipelineExec()

	_, err := svc.Join(context.Background(), "lobby", "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "unknown", n.actors[0])
}

func TestJoinRejectsSeparatorInName(t *testing.T) {
	svc, mock, n := newService(t)

	_, err := svc.Join(context.Background(), "lobby", "c1", "al#ice")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Empty(t, n.kinds, "no event on rejected join")
	assert.NoError(t, mock.ExpectationsWereMet(), "no store access on rejected join")
}

func TestJoinStoreFailureEmitsNothing(t *testing.T) {
	svc, mock, n := newService(t)

	mock.ExpectSet("conn:c1", "alice", testTTL).SetErr(errors.New("redis down"))

	_, err := svc.Join(context.Background(), "lobby", "c1", "alice")
	require.Error(t, err)
	assert.Empty(t, n.kinds)
}

func TestLeaveRemovesTokenAndEmits(t *testing.T) {
	svc, mock, n := newService(t)

	mock.ExpectGetDel("conn:c1").SetVal("alice")
	mock.ExpectTxPipeline()
	mock.ExpectSRem("room:lobby:members", "alice#c1").SetVal(1)
	mock.ExpectSMembers("room:lobby:members").SetVal([]string{"bob#c2"})
	mock.ExpectTxPipelineExec()

	actor, members, err := svc.Leave(context.Background(), "lobby", "c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", actor)
	assert.Equal(t, []Member{{Name: "bob", ConnectionID: "c2"}}, members)

	require.Len(t, n.kinds, 1)
	assert.Equal(t, KindLeft, n.kinds[0])
	assert.Equal(t, "alice", n.actors[0])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveUnknownConnectionFails(t *testing.T) {
	svc, mock, n := newService(t)

	mock.ExpectGetDel("conn:ghost").RedisNil()

	_, _, err := svc.Leave(context.Background(), "lobby", "ghost")
	assert.ErrorIs(t, err, ErrUnknownLeaver)
	assert.Empty(t, n.kinds, "no event for an unknown leaver")
	// No SREM/SMEMBERS were expected: the membership set stays untouched.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvictRemovesTokenWithoutRecordLookup(t *testing.T) {
	svc, mock, n := newService(t)

	mock.ExpectTxPipeline()
	mock.ExpectSRem("room:lobby:members", "alice#c1").SetVal(1)
	mock.ExpectSMembers("room:lobby:members").SetVal([]string{})
	mock.ExpectTxPipelineExec()

	members, err := svc.Evict(context.Background(), "lobby", Member{Name: "alice", ConnectionID: "c1"})
	require.NoError(t, err)
	assert.Empty(t, members)
	require.Len(t, n.kinds, 1)
	assert.Equal(t, KindLeft, n.kinds[0])
	assert.Equal(t, "alice", n.actors[0])
}

func TestNotifyFailureSurfacesAfterCommit(t *testing.T) {
	svc, mock, n := newService(t)
	n.err = errors.New("bus unavailable")

	mock.ExpectSet("conn:c1", "alice", testTTL).SetVal("OK")
	mock.ExpectTxPipeline()
	mock.ExpectSAdd("room:lobby:members", "alice#c1").SetVal(1)
	mock.ExpectSMembers("room:lobby:members").SetVal([]string{"alice#c1"})
	mock.ExpectTxPipelineExec()

	_, err := svc.Join(context.Background(), "lobby", "c1", "alice")
	require.Error(t, err)
	// The mutation committed: every expected store command ran.
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Scenario from the lifecycle contract: alice joins, bob joins, alice
// disconnects; the final snapshot holds only bob and the left event names
// alice as the actor.
func TestJoinJoinLeaveScenario(t *testing.T) {
	svc, mock, n := newService(t)

	mock.ExpectSet("conn:c1", "alice", testTTL).SetVal("OK")
	mock.ExpectTxPipeline()
	mock.ExpectSAdd("room:lobby:members", "alice#c1").SetVal(1)
	mock.ExpectSMembers("room:lobby:members").SetVal([]string{"alice#c1"})
	mock.ExpectTxPipelineExec()

	mock.ExpectSet("conn:c2", "bob", testTTL).SetVal("OK")
	mock.ExpectTxPipeline()
	mock.ExpectSAdd("room:lobby:members", "bob#c2").SetVal(1)
	mock.ExpectSMembers("room:lobby:members").SetVal([]string{"alice#c1", "bob#c2"})
	mock.ExpectTxPipelineExec()

	mock.ExpectGetDel("conn:c1").SetVal("alice")
	mock.ExpectTxPipeline()
	mock.ExpectSRem("room:lobby:members", "alice#c1").SetVal(1)
	mock.ExpectSMembers("room:lobby:members").SetVal([]string{"bob#c2"})
	mock.ExpectTxPipelineExec()

	members, err := svc.Join(context.Background(), "lobby", "c1", "alice")
	require.NoError(t, err)
	assert.Equal(t, []Member{{Name: "alice", ConnectionID: "c1"}}, members)

	members, err = svc.Join(context.Background(), "lobby", "c2", "bob")
	require.NoError(t, err)
	assert.Equal(t, []Member{
		{Name: "alice", ConnectionID: "c1"},
		{Name: "bob", ConnectionID: "c2"},
	}, members)

	actor, members, err := svc.Leave(context.Background(), "lobby", "c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", actor)
	assert.Equal(t, []Member{{Name: "bob", ConnectionID: "c2"}}, members)

	assert.Equal(t, []string{KindJoined, KindJoined, KindLeft}, n.kinds)
	assert.NoError(t, mock.ExpectationsWereMet())
}
