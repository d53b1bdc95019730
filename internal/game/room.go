// Package game hosts rooms: membership, the lobby, the serialized application
// of game actions and the fan-out of every resulting change.
//
// Each Room has one mutex. Every mutation, the version bump that goes with it
// and the enqueueing of the resulting frames happen inside that one critical
// section, so all members observe the same changes in the same order.
package game

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/engine"
	"github.com/scythe504/forsale-backend/internal/websockets"
)

// ResultSink archives finished games.
type ResultSink interface {
	Record(ctx context.Context, result internal.GameResult) error
}

// Options are shared by every room of a Directory.
type Options struct {
	// ReconnectGrace is how long a seat is held for a disconnected player
	// while a game is in progress.
	ReconnectGrace time.Duration
	Results        ResultSink
}

type member struct {
	internal.Member
	conn *websockets.Conn
}

// seat is a player's place in a running game. It outlives their connection
// for the length of the reconnect grace window.
type seat struct {
	playerID string
	// grace is non-nil while the seat is empty and waiting for a reconnect.
	grace       context.Context
	cancelGrace context.CancelFunc
}

type Room struct {
	id      string
	engine  engine.Engine
	outbox  Outbox
	opts    Options
	logger  *zap.Logger
	onClose func(*Room)

	mu      sync.Mutex
	members []*member
	seats   map[string]*seat
	state   engine.State
	phase   internal.Phase
	version int64
	closed  atomic.Bool
}

func NewRoom(id string, eng engine.Engine, outbox Outbox, opts Options, logger *zap.Logger) *Room {
	return &Room{
		id:     id,
		engine: eng,
		outbox: outbox,
		opts:   opts,
		logger: logger.Named("room").With(zap.String("room_id", id)),
		seats:  make(map[string]*seat),
		phase:  internal.PhaseWaiting,
	}
}

func (r *Room) ID() string { return r.id }

// Closed reports whether the room has been destroyed. A closed room rejects
// everything with ErrRoomClosed.
func (r *Room) Closed() bool { return r.closed.Load() }

// Snapshot is a consistent copy of the room taken under its lock.
type Snapshot struct {
	RoomID  string
	Phase   internal.Phase
	Version int64
	State   engine.State
	Members []internal.Member
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var state engine.State
	if r.state != nil {
		state = r.state.Clone()
	}
	return Snapshot{
		RoomID:  r.id,
		Phase:   r.phase,
		Version: r.version,
		State:   state,
		Members: r.memberList(),
	}
}

func (r *Room) Summary() internal.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	seats := make([]string, 0, len(r.seats))
	for id := range r.seats {
		seats = append(seats, id)
	}
	slices.Sort(seats)
	return internal.RoomSummary{
		ID:      r.id,
		Phase:   r.phase,
		Version: r.version,
		Members: r.memberList(),
		Seats:   seats,
	}
}

// Close destroys the room regardless of who is in it. Used on shutdown.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

// =============================================================================
// HELPERS (caller holds r.mu)
// =============================================================================

func (r *Room) indexOf(playerID string) int {
	return slices.IndexFunc(r.members, func(m *member) bool { return m.ID == playerID })
}

func (r *Room) memberList() []internal.Member {
	out := make([]internal.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.Member)
	}
	return out
}

func (r *Room) conns() []*websockets.Conn {
	out := make([]*websockets.Conn, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.conn)
	}
	return out
}

// closeIfIdleLocked destroys an empty room unless a game is still running.
// It reports whether the caller must call release after unlocking.
func (r *Room) closeIfIdleLocked() bool {
	if len(r.members) > 0 || !r.phase.Removable() || r.closed.Load() {
		return false
	}
	r.closeLocked()
	return true
}

func (r *Room) closeLocked() {
	if r.closed.Swap(true) {
		return
	}
	for _, s := range r.seats {
		s.stopGrace()
	}
	r.logger.Info("room closed", zap.String("phase", string(r.phase)), zap.Int64("version", r.version))
}

// release drops the room from its directory. Must be called without r.mu.
func (r *Room) release() {
	if r.onClose != nil {
		r.onClose(r)
	}
}
