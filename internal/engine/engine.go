// Package engine defines the contract between a room and the rules of the
// game it hosts. A room serializes every call, so engines need not be safe for
// concurrent use on a single State, but an Engine value is shared by all rooms.
package engine

import (
	"encoding/json"

	"github.com/scythe504/forsale-backend/internal"
)

// State is an engine-owned game state. Engines treat it as immutable: Next and
// HandleAbandon return a new State and leave their input untouched.
type State interface {
	Clone() State
}

// Action is one player move. Payload is the game-specific body of an ACTION
// frame, already checked to be a JSON object.
type Action struct {
	PlayerID string
	Payload  json.RawMessage
}

type Engine interface {
	// Limits returns the inclusive player count bounds.
	Limits() (min, max int)
	// CanStart reports whether the current members are enough to begin.
	CanStart(members []internal.Member) bool
	NewGame(players []string) (State, error)
	IsTurn(s State, playerID string) bool
	// Next applies a legal action. Rejections wrap internal.ErrIllegalAction
	// (or ErrMalformedPayload when the payload does not decode).
	Next(s State, a Action) (State, error)
	// HandleAbandon is applied when a seated player's reconnect window lapses.
	HandleAbandon(s State, playerID string) State
	Finished(s State) bool
}

// Scorer is implemented by engines that can rank a finished game.
type Scorer interface {
	Standings(s State) []internal.Standing
}
