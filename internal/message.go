package internal

import "encoding/json"

// Message is the envelope of every frame on the room channel.
type Message[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// Inbound frame types.
const (
	TypeJoin   = "JOIN"
	TypeAction = "ACTION"
	TypeLeave  = "LEAVE"
	TypePing   = "PING"
	TypeReady  = "READY"
	TypeChat   = "CHAT"
)

// Outbound frame types. CHAT is relayed under the same type it arrives with.
const (
	TypeJoined       = "JOINED"
	TypePlayerJoined = "PLAYER_JOINED"
	TypePlayerLeft   = "PLAYER_LEFT"
	TypePlayerReady  = "PLAYER_READY"
	TypeStateUpdated = "STATE_UPDATED"
	TypeError        = "ERROR"
	TypePong         = "PONG"
)

type JoinPayload struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

type ReadyPayload struct {
	Ready *bool `json:"ready"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

type JoinedData struct {
	RoomID      string   `json:"roomId"`
	PlayerID    string   `json:"playerId"`
	Version     int64    `json:"version"`
	Phase       Phase    `json:"phase"`
	State       any      `json:"state"`
	Members     []Member `json:"members"`
	Reconnected bool     `json:"reconnected"`
}

type MembersData struct {
	Members []Member `json:"members"`
}

type PlayerLeftData struct {
	PlayerID string   `json:"playerId"`
	Members  []Member `json:"members"`
}

// Kinds of transitions recorded in STATE_UPDATED.lastAction.
const (
	ActionKindPlayer  = "player"
	ActionKindStart   = "start"
	ActionKindAbandon = "abandon"
)

type ActionRecord struct {
	Kind     string          `json:"kind"`
	PlayerID string          `json:"playerId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type StateUpdatedData struct {
	Version    int64        `json:"version"`
	Phase      Phase        `json:"phase"`
	State      any          `json:"state"`
	LastAction ActionRecord `json:"lastAction"`
}

type ChatData struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongData struct{}
