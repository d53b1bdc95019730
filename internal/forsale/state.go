package forsale

import (
	"slices"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/engine"
)

type Stage string

const (
	StageBidding Stage = "bidding"
	StageSelling Stage = "selling"
	StageOver    Stage = "over"
)

type Seat struct {
	ID         string `json:"id"`
	Coins      int    `json:"coins"`
	Properties []int  `json:"properties"`
	Cheques    []int  `json:"cheques"`
	Bid        int    `json:"bid"`
	Passed     bool   `json:"passed"`
	Offered    bool   `json:"offered"`
	Forfeited  bool   `json:"forfeited,omitempty"`

	// offer stays hidden until every seat has chosen.
	offer int
}

// Sale records one property being sold during the selling stage.
type Sale struct {
	PlayerID string `json:"playerId"`
	Property int    `json:"property"`
	Cheque   int    `json:"cheque"`
}

// State is the full game. The draw piles are unexported so that only their
// sizes reach clients.
type State struct {
	Stage          Stage               `json:"stage"`
	Round          int                 `json:"round"`
	Seats          []Seat              `json:"seats"`
	TurnOrder      []string            `json:"turnOrder"`
	Turn           int                 `json:"turn"`
	Table          []int               `json:"table"`
	TableCheques   []int               `json:"tableCheques"`
	HighBid        int                 `json:"highBid"`
	HighBidder     string              `json:"highBidder,omitempty"`
	LastSales      []Sale              `json:"lastSales,omitempty"`
	PropertiesLeft int                 `json:"propertiesLeft"`
	ChequesLeft    int                 `json:"chequesLeft"`
	Standings      []internal.Standing `json:"standings,omitempty"`

	propertyDeck []int
	chequeDeck   []int
}

func (s *State) Clone() engine.State { return s.clone() }

func (s *State) clone() *State {
	c := *s
	c.Seats = make([]Seat, len(s.Seats))
	for i, seat := range s.Seats {
		seat.Properties = slices.Clone(seat.Properties)
		seat.Cheques = slices.Clone(seat.Cheques)
		c.Seats[i] = seat
	}
	c.TurnOrder = slices.Clone(s.TurnOrder)
	c.Table = slices.Clone(s.Table)
	c.TableCheques = slices.Clone(s.TableCheques)
	c.LastSales = slices.Clone(s.LastSales)
	c.Standings = slices.Clone(s.Standings)
	c.propertyDeck = slices.Clone(s.propertyDeck)
	c.chequeDeck = slices.Clone(s.chequeDeck)
	return &c
}

// CurrentPlayer is the seat whose bid is awaited. Empty outside bidding.
func (s *State) CurrentPlayer() string {
	if s.Stage != StageBidding || len(s.TurnOrder) == 0 {
		return ""
	}
	return s.TurnOrder[s.Turn]
}

// Seat returns the seat of playerID, or nil if they are not playing.
func (s *State) Seat(playerID string) *Seat {
	for i := range s.Seats {
		if s.Seats[i].ID == playerID {
			return &s.Seats[i]
		}
	}
	return nil
}

func (s *State) activeBidders() []*Seat {
	var active []*Seat
	for i := range s.Seats {
		if !s.Seats[i].Passed {
			active = append(active, &s.Seats[i])
		}
	}
	return active
}

func (s *State) advanceTurn() {
	n := len(s.TurnOrder)
	for step := 1; step <= n; step++ {
		idx := (s.Turn + step) % n
		if seat := s.Seat(s.TurnOrder[idx]); seat != nil && !seat.Passed {
			s.Turn = idx
			return
		}
	}
}

// dealProperties opens a bidding round with one property per seat.
func (s *State) dealProperties() {
	n := len(s.Seats)
	s.Table = slices.Clone(s.propertyDeck[:n])
	slices.Sort(s.Table)
	s.propertyDeck = s.propertyDeck[n:]
	s.PropertiesLeft = len(s.propertyDeck)

	s.Round++
	s.Turn = 0
	s.HighBid = 0
	s.HighBidder = ""
	for i := range s.Seats {
		s.Seats[i].Bid = 0
		s.Seats[i].Passed = false
	}
}

// dealCheques opens a selling round, highest cheque first.
func (s *State) dealCheques() {
	n := len(s.Seats)
	s.TableCheques = slices.Clone(s.chequeDeck[:n])
	slices.Sort(s.TableCheques)
	slices.Reverse(s.TableCheques)
	s.chequeDeck = s.chequeDeck[n:]
	s.ChequesLeft = len(s.chequeDeck)

	s.Round++
	for i := range s.Seats {
		s.Seats[i].Offered = false
		s.Seats[i].offer = 0
	}
}

func (s *State) endBiddingRound() {
	s.Table = nil
	s.HighBid = 0
	s.HighBidder = ""
	if len(s.propertyDeck) >= len(s.Seats) {
		s.dealProperties()
		return
	}
	s.Stage = StageSelling
	s.Round = 0
	s.Turn = 0
	s.dealCheques()
}

func (s *State) finish() {
	s.Stage = StageOver
	s.Table = nil
	s.TableCheques = nil
	s.Standings = standings(s.Seats)
}

func removeValue(values []int, v int) []int {
	if i := slices.Index(values, v); i >= 0 {
		return slices.Delete(values, i, i+1)
	}
	return values
}
