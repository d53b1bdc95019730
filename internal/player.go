package internal

import "time"

// Member is the public view of one player connected to a room.
type Member struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Ready       bool      `json:"ready"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// MemberIDs returns the player ids in member order.
func MemberIDs(members []Member) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}
