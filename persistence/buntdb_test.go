package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/types"
)

func newBuntPersister(t *testing.T) Persister {
	t.Helper()
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"},
	}
	p, err := NewBuntPersister(cfg)
	require.NoError(t, err)
	require.NotNil(t, p)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestBuntRoomRoundtrip(t *testing.T) {
	p := newBuntPersister(t)

	room := types.NewRoom("r1", "Sprint 12", types.DefaultDeck)
	room.CurrentRound = 4
	require.NoError(t, p.StoreRoom(*room))

	got := &types.Room{Id: "r1"}
	require.NoError(t, p.GetRoom(got))
	assert.Equal(t, "Sprint 12", got.Name)
	assert.Equal(t, 4, got.CurrentRound)
	assert.Equal(t, "fibonacci", got.DeckName)

	rooms, err := p.GetRooms()
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	missing := &types.Room{Id: "nope"}
	assert.Error(t, p.GetRoom(missing))
}

func TestBuntVoteHistory(t *testing.T) {
	p := newBuntPersister(t)

	records := []*types.VoteRecord{
		{RoomId: "r1", ParticipantId: "a", Nick: "Alice", Value: "5", Round: 1, CreatedAt: time.Now()},
		{RoomId: "r1", ParticipantId: "b", Nick: "Bob", Value: "8", Round: 1, CreatedAt: time.Now()},
		{RoomId: "r1", ParticipantId: "a", Nick: "Alice", Value: "13", Round: 2, CreatedAt: time.Now()},
		{RoomId: "r2", ParticipantId: "c", Nick: "Carol", Value: "3", Round: 7, CreatedAt: time.Now()},
	}
	for _, rec := range records {
		require.NoError(t, rec.CreateId())
	}
	require.NoError(t, p.StoreVotes(records))

	history, err := p.GetVoteHistory("r1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 2, history[0].Round, "newest round first")

	latest, err := p.LatestRound("r1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest)

	latest, err = p.LatestRound("r2")
	require.NoError(t, err)
	assert.Equal(t, 7, latest)

	latest, err = p.LatestRound("unknown")
	require.NoError(t, err)
	assert.Equal(t, 0, latest)

	// a re-reveal of the same round overwrites instead of duplicating
	require.NoError(t, p.StoreVotes(records[:1]))
	history, err = p.GetVoteHistory("r1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestBuntDeleteRoomDropsHistory(t *testing.T) {
	p := newBuntPersister(t)

	room := types.NewRoom("r1", "Sprint 12", types.DefaultDeck)
	require.NoError(t, p.StoreRoom(*room))
	rec := &types.VoteRecord{RoomId: "r1", ParticipantId: "a", Value: "5", Round: 1, CreatedAt: time.Now()}
	require.NoError(t, rec.CreateId())
	require.NoError(t, p.StoreVotes([]*types.VoteRecord{rec}))

	require.NoError(t, p.DeleteRoom(&types.Room{Id: "r1"}))
	assert.Error(t, p.GetRoom(&types.Room{Id: "r1"}))
	history, err := p.GetVoteHistory("r1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
