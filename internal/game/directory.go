package game

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/engine"
	"github.com/scythe504/forsale-backend/internal/websockets"
)

// Directory maps room ids to live rooms. Lock order is directory before room;
// a room calls Remove only after releasing its own lock.
type Directory struct {
	engine engine.Engine
	outbox Outbox
	opts   Options
	// base is handed to rooms, logger is the directory's own.
	base   *zap.Logger
	logger *zap.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewDirectory(eng engine.Engine, outbox Outbox, opts Options, logger *zap.Logger) *Directory {
	return &Directory{
		engine: eng,
		outbox: outbox,
		opts:   opts,
		base:   logger,
		logger: logger.Named("directory"),
		rooms:  make(map[string]*Room),
	}
}

// GetOrCreate returns the live room for roomID, creating it on first use.
// Concurrent callers for the same id get the same instance.
func (d *Directory) GetOrCreate(roomID string) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r, ok := d.rooms[roomID]; ok && !r.Closed() {
		return r
	}
	r := NewRoom(roomID, d.engine, d.outbox, d.opts, d.base)
	r.onClose = func(r *Room) { d.Remove(r.ID(), r) }
	d.rooms[roomID] = r
	d.logger.Info("room created", zap.String("room_id", roomID))
	return r
}

func (d *Directory) Get(roomID string) (*Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok || r.Closed() {
		return nil, false
	}
	return r, true
}

// Remove deletes roomID only while it still maps to room, so a closing room
// can never evict the fresh instance that replaced it.
func (d *Directory) Remove(roomID string, room *Room) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cur, ok := d.rooms[roomID]; ok && cur == room {
		delete(d.rooms, roomID)
		d.logger.Info("room removed", zap.String("room_id", roomID))
	}
}

// Join joins playerID to roomID, retrying on a fresh instance if the room it
// found was closed in between.
func (d *Directory) Join(roomID, playerID, displayName string, c *websockets.Conn) (*Room, JoinResult, error) {
	for {
		r := d.GetOrCreate(roomID)
		res, err := r.Join(playerID, displayName, c)
		if errors.Is(err, internal.ErrRoomClosed) {
			continue
		}
		if err != nil {
			r.reapIfIdle()
			return nil, JoinResult{}, err
		}
		return r, res, nil
	}
}

func (d *Directory) list() []*Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		out = append(out, r)
	}
	return out
}

// Joinable returns the id of a lobby with a free seat, or "".
func (d *Directory) Joinable() string {
	_, capacity := d.engine.Limits()
	for _, r := range d.list() {
		if s := r.Summary(); s.CanJoin(capacity) && len(s.Members) > 0 {
			return s.ID
		}
	}
	return ""
}

func (d *Directory) Stats() internal.DirectoryStats {
	stats := internal.DirectoryStats{ByPhase: make(map[internal.Phase]int)}
	for _, r := range d.list() {
		s := r.Summary()
		stats.Rooms++
		stats.Players += len(s.Members)
		stats.ByPhase[s.Phase]++
	}
	return stats
}

// Close destroys every room. Used on shutdown.
func (d *Directory) Close() {
	d.mu.Lock()
	rooms := d.rooms
	d.rooms = make(map[string]*Room)
	d.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
}
