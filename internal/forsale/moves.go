package forsale

import (
	"fmt"
	"slices"

	"github.com/scythe504/forsale-backend/internal"
)

// Move is the ACTION payload understood by the engine.
//
//	{"kind":"bid","amount":3000}
//	{"kind":"pass"}
//	{"kind":"play","card":17}
type Move struct {
	Kind   string `json:"kind"`
	Amount int    `json:"amount,omitempty"`
	Card   int    `json:"card,omitempty"`
}

const (
	MoveBid  = "bid"
	MovePass = "pass"
	MovePlay = "play"
)

// passPenalty is what a passing bidder pays: half their bid, rounded down to
// a multiple of 500.
func passPenalty(bid int) int {
	return bid / 2 / 500 * 500
}

func (s *State) bid(playerID string, amount int) error {
	if s.Stage != StageBidding {
		return fmt.Errorf("%w: bidding is closed", internal.ErrIllegalAction)
	}
	if s.CurrentPlayer() != playerID {
		return internal.ErrNotYourTurn
	}
	seat := s.Seat(playerID)
	if amount <= s.HighBid {
		return fmt.Errorf("%w: bid must exceed %d", internal.ErrIllegalAction, s.HighBid)
	}
	if amount > seat.Coins {
		return fmt.Errorf("%w: bid of %d exceeds your %d coins", internal.ErrIllegalAction, amount, seat.Coins)
	}

	seat.Bid = amount
	s.HighBid = amount
	s.HighBidder = playerID
	s.advanceTurn()
	return nil
}

func (s *State) pass(playerID string) error {
	if s.Stage != StageBidding {
		return fmt.Errorf("%w: bidding is closed", internal.ErrIllegalAction)
	}
	if s.CurrentPlayer() != playerID {
		return internal.ErrNotYourTurn
	}
	seat := s.Seat(playerID)

	// 1. Passing takes the cheapest property on the table
	lowest := slices.Min(s.Table)
	s.Table = removeValue(s.Table, lowest)
	seat.Properties = append(seat.Properties, lowest)
	seat.Coins -= passPenalty(seat.Bid)
	seat.Bid = 0
	seat.Passed = true

	// 2. The last bidder standing takes the best property at full price
	active := s.activeBidders()
	if len(active) > 1 {
		s.advanceTurn()
		return nil
	}
	if len(active) == 1 && len(s.Table) > 0 {
		last := active[0]
		highest := slices.Max(s.Table)
		s.Table = removeValue(s.Table, highest)
		last.Properties = append(last.Properties, highest)
		last.Coins -= last.Bid
		last.Bid = 0
	}
	s.endBiddingRound()
	return nil
}

func (s *State) play(playerID string, card int) error {
	if s.Stage != StageSelling {
		return fmt.Errorf("%w: properties are sold only after bidding ends", internal.ErrIllegalAction)
	}
	seat := s.Seat(playerID)
	if seat == nil {
		return fmt.Errorf("%w: you are not seated in this game", internal.ErrIllegalAction)
	}
	if seat.Offered {
		return fmt.Errorf("%w: you already offered a property this round", internal.ErrNotYourTurn)
	}
	if !slices.Contains(seat.Properties, card) {
		return fmt.Errorf("%w: you do not own property %d", internal.ErrIllegalAction, card)
	}

	seat.Offered = true
	seat.offer = card
	for i := range s.Seats {
		if !s.Seats[i].Offered {
			return nil
		}
	}
	s.resolveSale()
	return nil
}

// resolveSale hands the highest cheque to the highest offered property.
func (s *State) resolveSale() {
	order := make([]int, len(s.Seats))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return s.Seats[b].offer - s.Seats[a].offer
	})

	sales := make([]Sale, 0, len(order))
	for rank, i := range order {
		seat := &s.Seats[i]
		cheque := s.TableCheques[rank]
		seat.Properties = removeValue(seat.Properties, seat.offer)
		seat.Cheques = append(seat.Cheques, cheque)
		sales = append(sales, Sale{PlayerID: seat.ID, Property: seat.offer, Cheque: cheque})
		seat.Offered = false
		seat.offer = 0
	}
	s.LastSales = sales
	s.TableCheques = nil

	if len(s.chequeDeck) >= len(s.Seats) && len(s.Seats[0].Properties) > 0 {
		s.dealCheques()
		return
	}
	s.finish()
}
