package forsale

import (
	"slices"

	"github.com/scythe504/forsale-backend/internal"
)

// standings compiles the leaderboard of a finished game.
func standings(seats []Seat) []internal.Standing {
	// 1. Score every seat: coins left plus cheques collected
	board := make([]internal.Standing, 0, len(seats))
	for _, seat := range seats {
		score := seat.Coins
		for _, cheque := range seat.Cheques {
			score += cheque
		}
		board = append(board, internal.Standing{
			PlayerID:  seat.ID,
			Score:     score,
			Coins:     seat.Coins,
			Forfeited: seat.Forfeited,
		})
	}

	// 2. Forfeits go last, then score descending, ties broken on coins
	slices.SortStableFunc(board, func(a, b internal.Standing) int {
		if a.Forfeited != b.Forfeited {
			if a.Forfeited {
				return 1
			}
			return -1
		}
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return b.Coins - a.Coins
	})

	// 3. Positions are 1-based
	for idx := range board {
		board[idx].Position = idx + 1
	}
	return board
}
