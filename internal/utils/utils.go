package utils

import (
	"math/rand/v2"
	"strings"
)

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomCodeLength is the size of codes handed out by POST /rooms.
const RoomCodeLength = 6

// GenerateRoomCode returns n random characters from [A-Z0-9].
func GenerateRoomCode(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(roomCodeAlphabet[rand.IntN(len(roomCodeAlphabet))])
	}
	return b.String()
}

// NormalizeRoomID is how every entry point spells a room id.
func NormalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
