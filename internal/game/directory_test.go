package game_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/game"
	"github.com/scythe504/forsale-backend/internal/websockets"
)

func newDirectory(eng *counterEngine, grace time.Duration) (*game.Directory, *websockets.Registry) {
	reg := newRegistry()
	return game.NewDirectory(eng, reg, game.Options{ReconnectGrace: grace}, zap.NewNop()), reg
}

func TestDirectory_ConcurrentGetOrCreate(t *testing.T) {
	dir, _ := newDirectory(&counterEngine{min: 2, max: 4}, time.Second)

	rooms := make([]*game.Room, 100)
	var wg sync.WaitGroup
	for i := range rooms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rooms[i] = dir.GetOrCreate("ROOM1")
		}()
	}
	wg.Wait()

	for _, r := range rooms {
		assert.Same(t, rooms[0], r)
	}
	assert.Equal(t, 1, dir.Stats().Rooms)
}

func TestDirectory_ConcurrentFirstJoiners(t *testing.T) {
	dir, reg := newDirectory(&counterEngine{min: 9, max: 8}, time.Second)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := dir.Join("ROOM1", fmt.Sprintf("p%d", i), "", reg.Register(nil))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	room, ok := dir.Get("ROOM1")
	require.True(t, ok)
	assert.Len(t, room.Snapshot().Members, 8)
	stats := dir.Stats()
	assert.Equal(t, 1, stats.Rooms)
	assert.Equal(t, 8, stats.Players)
	assert.Equal(t, 1, stats.ByPhase[internal.PhaseWaiting])
}

func TestDirectory_LastLeaveRemovesRoom(t *testing.T) {
	dir, reg := newDirectory(&counterEngine{min: 2, max: 4}, time.Second)

	first, _, err := dir.Join("ROOM1", "A", "", reg.Register(nil))
	require.NoError(t, err)
	first.Leave("A")

	_, ok := dir.Get("ROOM1")
	assert.False(t, ok)
	assert.Zero(t, dir.Stats().Rooms)

	second, res, err := dir.Join("ROOM1", "B", "", reg.Register(nil))
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Zero(t, res.Version)
	assert.Equal(t, []string{"B"}, memberIDs(res.Members))
}

func TestDirectory_RemoveIgnoresReplacedInstance(t *testing.T) {
	dir, _ := newDirectory(&counterEngine{min: 2, max: 4}, time.Second)

	stale := dir.GetOrCreate("ROOM1")
	stale.Close()
	fresh := dir.GetOrCreate("ROOM1")
	require.NotSame(t, stale, fresh)

	dir.Remove("ROOM1", stale)
	got, ok := dir.Get("ROOM1")
	require.True(t, ok)
	assert.Same(t, fresh, got)

	dir.Remove("ROOM1", fresh)
	_, ok = dir.Get("ROOM1")
	assert.False(t, ok)
}

func TestDirectory_FailedJoinDoesNotLeakRoom(t *testing.T) {
	dir, reg := newDirectory(&counterEngine{min: 2, max: 4}, time.Second)
	c := reg.Register(nil)
	reg.Unregister(c)

	_, _, err := dir.Join("ROOM1", "A", "", c)
	assert.ErrorIs(t, err, internal.ErrConnectionClosed)
	assert.Zero(t, dir.Stats().Rooms)
}

func TestDirectory_InProgressRoomKeptUntilGraceLapses(t *testing.T) {
	dir, reg := newDirectory(&counterEngine{min: 2, max: 4}, 30*time.Millisecond)

	room, _, err := dir.Join("ROOM1", "A", "", reg.Register(nil))
	require.NoError(t, err)
	_, _, err = dir.Join("ROOM1", "B", "", reg.Register(nil))
	require.NoError(t, err)
	require.NoError(t, room.Ready("A", true))
	require.NoError(t, room.Ready("B", true))
	require.Equal(t, internal.PhaseInProgress, room.Snapshot().Phase)

	room.Leave("A")
	room.Leave("B")
	_, ok := dir.Get("ROOM1")
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := dir.Get("ROOM1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestDirectory_Joinable(t *testing.T) {
	dir, reg := newDirectory(&counterEngine{min: 3, max: 2}, time.Second)
	assert.Empty(t, dir.Joinable())

	_, _, err := dir.Join("ROOM1", "A", "", reg.Register(nil))
	require.NoError(t, err)
	assert.Equal(t, "ROOM1", dir.Joinable())

	_, _, err = dir.Join("ROOM1", "B", "", reg.Register(nil))
	require.NoError(t, err)
	assert.Empty(t, dir.Joinable())
}

func TestDirectory_Close(t *testing.T) {
	dir, reg := newDirectory(&counterEngine{min: 2, max: 4}, time.Second)
	room, _, err := dir.Join("ROOM1", "A", "", reg.Register(nil))
	require.NoError(t, err)

	dir.Close()
	assert.True(t, room.Closed())
	assert.Zero(t, dir.Stats().Rooms)
}

func TestDirectory_LoggerNames(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	reg := newRegistry()
	dir := game.NewDirectory(&counterEngine{min: 2, max: 4}, reg, game.Options{ReconnectGrace: time.Second}, zap.New(core))
	game.NewDispatcher(dir, reg, zap.New(core))

	_, _, err := dir.Join("ROOM1", "A", "", reg.Register(nil))
	require.NoError(t, err)

	created := logs.FilterMessage("room created").All()
	require.Len(t, created, 1)
	assert.Equal(t, "directory", created[0].LoggerName)
	assert.Equal(t, "ROOM1", created[0].ContextMap()["room_id"])

	joined := logs.FilterMessage("player joined").All()
	require.Len(t, joined, 1)
	assert.Equal(t, "room", joined[0].LoggerName)
	assert.Equal(t, "ROOM1", joined[0].ContextMap()["room_id"])
	assert.Equal(t, "A", joined[0].ContextMap()["player_id"])
}
