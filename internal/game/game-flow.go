package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/engine"
)

// =============================================================================
// GAME FLOW - START, ACTIONS, FINISH
// =============================================================================

const archiveTimeout = 5 * time.Second

type ActionResult struct {
	Version int64
	Phase   internal.Phase
}

// ApplyAction validates and applies one player action. On success the version
// is bumped and STATE_UPDATED goes to every member; on failure nothing in the
// room changes and nothing is broadcast.
func (r *Room) ApplyAction(playerID string, payload json.RawMessage) (ActionResult, error) {
	// --- Critical section ---
	r.mu.Lock()
	defer r.mu.Unlock()

	// 1. Membership and phase
	if r.closed.Load() {
		return ActionResult{}, internal.ErrRoomClosed
	}
	if r.indexOf(playerID) < 0 {
		return ActionResult{}, internal.ErrNotJoined
	}
	switch r.phase {
	case internal.PhaseWaiting:
		return ActionResult{}, fmt.Errorf("%w: the game has not started", internal.ErrIllegalAction)
	case internal.PhaseFinished:
		return ActionResult{}, internal.ErrGameFinished
	}

	// 2. Turn, then legality
	if !r.engine.IsTurn(r.state, playerID) {
		return ActionResult{}, internal.ErrNotYourTurn
	}
	next, err := r.engine.Next(r.state.Clone(), engine.Action{PlayerID: playerID, Payload: payload})
	if err != nil {
		var known *internal.Error
		if !errors.As(err, &known) {
			err = fmt.Errorf("%w: %v", internal.ErrIllegalAction, err)
		}
		return ActionResult{}, err
	}

	// 3. Commit and broadcast
	r.commitLocked(next, internal.ActionRecord{Kind: internal.ActionKindPlayer, PlayerID: playerID, Payload: payload})
	return ActionResult{Version: r.version, Phase: r.phase}, nil
}

// maybeStartLocked moves WAITING to IN_PROGRESS once the engine agrees.
func (r *Room) maybeStartLocked() {
	if r.phase != internal.PhaseWaiting || !r.engine.CanStart(r.memberList()) {
		return
	}
	players := internal.MemberIDs(r.memberList())
	state, err := r.engine.NewGame(players)
	if err != nil {
		r.logger.Error("starting game", zap.Strings("players", players), zap.Error(err))
		return
	}

	r.phase = internal.PhaseInProgress
	r.seats = make(map[string]*seat, len(players))
	for _, id := range players {
		r.seats[id] = &seat{playerID: id}
	}
	r.logger.Info("game started", zap.Strings("players", players))
	r.commitLocked(state, internal.ActionRecord{Kind: internal.ActionKindStart})
}

// commitLocked installs a new state, bumps the version and broadcasts. The
// phase is updated first so the frame carries FINISHED for a final move.
func (r *Room) commitLocked(next engine.State, record internal.ActionRecord) {
	r.state = next
	r.version++
	if r.engine.Finished(next) {
		r.finishLocked()
	}
	broadcastLocked(r, internal.TypeStateUpdated, internal.StateUpdatedData{
		Version:    r.version,
		Phase:      r.phase,
		State:      r.state,
		LastAction: record,
	})
}

func (r *Room) finishLocked() {
	if !r.phase.CanTransitionTo(internal.PhaseFinished) {
		return
	}
	r.phase = internal.PhaseFinished
	for _, s := range r.seats {
		s.stopGrace()
	}

	result := internal.GameResult{RoomID: r.id, Version: r.version, FinishedAt: time.Now().UTC()}
	if scorer, ok := r.engine.(engine.Scorer); ok {
		result.Standings = scorer.Standings(r.state)
	}
	r.logger.Info("game finished", zap.Int64("version", r.version), zap.Int("standings", len(result.Standings)))

	if r.opts.Results != nil {
		go r.archive(result)
	}
}

func (r *Room) archive(result internal.GameResult) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := r.opts.Results.Record(ctx, result); err != nil {
		r.logger.Error("archiving result", zap.Error(err))
	}
}
