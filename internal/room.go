package internal

// RoomSummary is the read-only view served over HTTP.
type RoomSummary struct {
	ID      string   `json:"roomId"`
	Phase   Phase    `json:"phase"`
	Version int64    `json:"version"`
	Members []Member `json:"members"`
	Seats   []string `json:"seats,omitempty"`
}

// CanJoin reports whether a new (not reconnecting) player could join.
func (s RoomSummary) CanJoin(maxPlayers int) bool {
	return s.Phase == PhaseWaiting && len(s.Members) < maxPlayers
}

// DirectoryStats is the status endpoint's view of all live rooms.
type DirectoryStats struct {
	Rooms   int           `json:"rooms"`
	Players int           `json:"players"`
	ByPhase map[Phase]int `json:"by_phase"`
}
