package game

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/websockets"
)

// =============================================================================
// MEMBERSHIP & LOBBY
// =============================================================================

type JoinResult struct {
	Members     []internal.Member
	Phase       internal.Phase
	Version     int64
	Reconnected bool
}

// Join adds playerID on connection c. Existing members are told first, then
// c receives the full snapshot. A seated player rejoining an in-progress game
// takes their seat back without a version change.
func (r *Room) Join(playerID, displayName string, c *websockets.Conn) (JoinResult, error) {
	// --- Critical section ---
	r.mu.Lock()
	defer r.mu.Unlock()

	// 1. Reject anything the room can no longer accept
	if r.closed.Load() {
		return JoinResult{}, internal.ErrRoomClosed
	}
	if c.Closed() {
		return JoinResult{}, internal.ErrConnectionClosed
	}
	if r.indexOf(playerID) >= 0 {
		return JoinResult{}, internal.ErrAlreadyJoined
	}

	// 2. Phase decides who may come in
	reconnected := false
	switch r.phase {
	case internal.PhaseWaiting:
		if _, capacity := r.engine.Limits(); len(r.members) >= capacity {
			return JoinResult{}, fmt.Errorf("%w: %d of %d seats taken", internal.ErrRoomFull, len(r.members), capacity)
		}
	case internal.PhaseInProgress:
		s, ok := r.seats[playerID]
		if !ok {
			return JoinResult{}, internal.ErrGameInProgress
		}
		s.stopGrace()
		reconnected = true
	case internal.PhaseFinished:
		return JoinResult{}, internal.ErrGameFinished
	}

	// 3. Add, then tell everyone else before the newcomer gets the snapshot
	if strings.TrimSpace(displayName) == "" {
		displayName = playerID
	}
	existing := r.conns()
	r.members = append(r.members, &member{
		Member: internal.Member{ID: playerID, DisplayName: displayName, JoinedAt: time.Now()},
		conn:   c,
	})
	members := r.memberList()

	broadcastToLocked(r, existing, internal.TypePlayerJoined, internal.MembersData{Members: members})
	sendLocked(r, c, internal.TypeJoined, internal.JoinedData{
		RoomID:      r.id,
		PlayerID:    playerID,
		Version:     r.version,
		Phase:       r.phase,
		State:       r.state,
		Members:     members,
		Reconnected: reconnected,
	})
	r.logger.Info("player joined",
		zap.String("player_id", playerID),
		zap.Int("members", len(members)),
		zap.Bool("reconnected", reconnected))

	// 4. A join can be what the engine was waiting for
	r.maybeStartLocked()

	return JoinResult{Members: r.memberList(), Phase: r.phase, Version: r.version, Reconnected: reconnected}, nil
}

// Ready toggles a member's ready flag in the lobby.
func (r *Room) Ready(playerID string, ready bool) error {
	// --- Critical section ---
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return internal.ErrRoomClosed
	}
	idx := r.indexOf(playerID)
	if idx < 0 {
		return internal.ErrNotJoined
	}
	switch r.phase {
	case internal.PhaseInProgress:
		return internal.ErrGameInProgress
	case internal.PhaseFinished:
		return internal.ErrGameFinished
	}

	r.members[idx].Ready = ready
	broadcastLocked(r, internal.TypePlayerReady, internal.MembersData{Members: r.memberList()})
	r.logger.Debug("ready toggled", zap.String("player_id", playerID), zap.Bool("ready", ready))

	r.maybeStartLocked()
	return nil
}

// Chat relays a lobby or table message to every member.
func (r *Room) Chat(playerID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: message must not be empty", internal.ErrMalformedPayload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return internal.ErrRoomClosed
	}
	idx := r.indexOf(playerID)
	if idx < 0 {
		return internal.ErrNotJoined
	}
	broadcastLocked(r, internal.TypeChat, internal.ChatData{
		PlayerID:    playerID,
		DisplayName: r.members[idx].DisplayName,
		Message:     text,
		Timestamp:   time.Now().UnixMilli(),
	})
	return nil
}

// Leave removes playerID. Leaving twice is a no-op.
func (r *Room) Leave(playerID string) {
	r.leave(playerID, nil)
}

// Disconnect removes playerID only if they are still on connection c, so a
// late disconnect of a replaced connection cannot evict a reconnected player.
func (r *Room) Disconnect(playerID string, c *websockets.Conn) {
	r.leave(playerID, c)
}

func (r *Room) leave(playerID string, c *websockets.Conn) {
	// --- Critical section ---
	r.mu.Lock()
	idx := r.indexOf(playerID)
	if r.closed.Load() || idx < 0 || (c != nil && r.members[idx].conn != c) {
		r.mu.Unlock()
		return
	}

	// 1. Remove and tell whoever is left
	r.members = slices.Delete(r.members, idx, idx+1)
	broadcastLocked(r, internal.TypePlayerLeft, internal.PlayerLeftData{PlayerID: playerID, Members: r.memberList()})
	r.logger.Info("player left", zap.String("player_id", playerID), zap.Int("members", len(r.members)))

	// 2. A seated player keeps their seat for the grace window
	if s, ok := r.seats[playerID]; ok && r.phase == internal.PhaseInProgress {
		r.startGraceLocked(s)
	}

	// 3. The last one out closes a room that has no game to protect
	closing := r.closeIfIdleLocked()

	// 4. The one holding up the lobby may be the one who left
	if !closing {
		r.maybeStartLocked()
	}
	r.mu.Unlock()
	// --- End critical section ---

	if closing {
		r.release()
	}
}

// reapIfIdle closes a room that nobody managed to join.
func (r *Room) reapIfIdle() bool {
	r.mu.Lock()
	closing := r.closeIfIdleLocked()
	r.mu.Unlock()
	if closing {
		r.release()
	}
	return closing
}
