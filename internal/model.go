package internal

import "time"

// Phase is the room lifecycle. It only ever moves forward.
type Phase string

const (
	PhaseWaiting    Phase = "WAITING"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseFinished   Phase = "FINISHED"
)

// CanTransitionTo reports whether next directly follows p.
func (p Phase) CanTransitionTo(next Phase) bool {
	switch p {
	case PhaseWaiting:
		return next == PhaseInProgress
	case PhaseInProgress:
		return next == PhaseFinished
	}
	return false
}

// Removable reports whether an empty room in this phase may be destroyed.
// In-progress rooms are kept so seated players can reconnect.
func (p Phase) Removable() bool {
	return p == PhaseWaiting || p == PhaseFinished
}

// Standing is one line of a finished game's leaderboard.
type Standing struct {
	PlayerID  string `json:"playerId"`
	Score     int    `json:"score"`
	Coins     int    `json:"coins"`
	Position  int    `json:"position"`
	Forfeited bool   `json:"forfeited,omitempty"`
}

// GameResult is what gets archived when a room reaches FINISHED.
type GameResult struct {
	RoomID     string     `json:"roomId"`
	Version    int64      `json:"version"`
	FinishedAt time.Time  `json:"finishedAt"`
	Standings  []Standing `json:"standings"`
}

type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}
