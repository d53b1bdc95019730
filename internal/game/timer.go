package game

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
)

// =============================================================================
// RECONNECT GRACE TIMERS
// =============================================================================

// startGraceLocked holds s for the grace window. If nobody reconnects in time
// the engine's abandon rule is applied.
func (r *Room) startGraceLocked(s *seat) {
	s.stopGrace()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ReconnectGrace)
	s.grace, s.cancelGrace = ctx, cancel
	r.logger.Debug("grace window opened", zap.String("player_id", s.playerID), zap.Duration("grace", r.opts.ReconnectGrace))

	go func() {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.expireGrace(ctx, s.playerID)
		}
	}()
}

func (s *seat) stopGrace() {
	if s.cancelGrace != nil {
		s.cancelGrace()
	}
	s.grace, s.cancelGrace = nil, nil
}

// expireGrace applies the abandon transition for a seat whose window lapsed.
// ctx identifies the window so a stale timer is ignored after a reconnect.
func (r *Room) expireGrace(ctx context.Context, playerID string) {
	// --- Critical section ---
	r.mu.Lock()
	s, ok := r.seats[playerID]
	if r.closed.Load() || r.phase != internal.PhaseInProgress || !ok || s.grace != ctx {
		r.mu.Unlock()
		return
	}
	s.stopGrace()

	r.logger.Info("reconnect window lapsed", zap.String("player_id", playerID))
	next := r.engine.HandleAbandon(r.state.Clone(), playerID)
	r.commitLocked(next, internal.ActionRecord{Kind: internal.ActionKindAbandon, PlayerID: playerID})

	// Nobody is left to play or to come back
	if r.phase == internal.PhaseInProgress && len(r.members) == 0 && !r.anyGraceLocked() {
		r.finishLocked()
	}

	closing := r.closeIfIdleLocked()
	r.mu.Unlock()
	// --- End critical section ---

	if closing {
		r.release()
	}
}

func (r *Room) anyGraceLocked() bool {
	for _, s := range r.seats {
		if s.grace != nil {
			return true
		}
	}
	return false
}
