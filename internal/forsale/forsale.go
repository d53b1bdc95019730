// Package forsale implements the rules of the ForSale auction game.
//
// A game has two stages. While bidding, one property per seat is turned face
// up each round and players bid coins in turn; passing takes the cheapest
// card left on the table. Once the property pile runs out, every seat secretly
// offers one of its properties per round and the highest offer takes the
// highest cheque. The richest seat (coins plus cheques) wins.
package forsale

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/engine"
)

const (
	DefaultMinPlayers    = 3
	DefaultMaxPlayers    = 6
	DefaultStartingCoins = 18000

	propertyCount = 30
)

// Rules are the tunable parts of the game.
type Rules struct {
	MinPlayers    int
	MaxPlayers    int
	StartingCoins int
}

func DefaultRules() Rules {
	return Rules{
		MinPlayers:    DefaultMinPlayers,
		MaxPlayers:    DefaultMaxPlayers,
		StartingCoins: DefaultStartingCoins,
	}
}

func (r Rules) Validate() error {
	var errs []error
	if r.MinPlayers < DefaultMinPlayers {
		errs = append(errs, fmt.Errorf("min players must be at least %d, got %d", DefaultMinPlayers, r.MinPlayers))
	}
	if r.MaxPlayers > DefaultMaxPlayers {
		errs = append(errs, fmt.Errorf("max players must be at most %d, got %d", DefaultMaxPlayers, r.MaxPlayers))
	}
	if r.MinPlayers > r.MaxPlayers {
		errs = append(errs, fmt.Errorf("min players %d exceeds max players %d", r.MinPlayers, r.MaxPlayers))
	}
	if r.StartingCoins <= 0 {
		errs = append(errs, fmt.Errorf("starting coins must be positive, got %d", r.StartingCoins))
	}
	return errors.Join(errs...)
}

type Option func(*Engine)

// WithSeed makes deals reproducible. seed is called twice per game.
func WithSeed(seed func() uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// Engine is stateless apart from its rules and is shared between rooms.
type Engine struct {
	rules Rules
	seed  func() uint64
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Scorer = (*Engine)(nil)
)

func New(rules Rules, opts ...Option) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("forsale rules: %w", err)
	}
	e := &Engine{rules: rules, seed: rand.Uint64}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Limits() (int, int) {
	return e.rules.MinPlayers, e.rules.MaxPlayers
}

// CanStart requires a full enough table where everyone has readied up.
func (e *Engine) CanStart(members []internal.Member) bool {
	if len(members) < e.rules.MinPlayers || len(members) > e.rules.MaxPlayers {
		return false
	}
	for _, m := range members {
		if !m.Ready {
			return false
		}
	}
	return true
}

func (e *Engine) NewGame(players []string) (engine.State, error) {
	n := len(players)
	if n < e.rules.MinPlayers || n > e.rules.MaxPlayers {
		return nil, fmt.Errorf("%w: %d players, need %d to %d",
			internal.ErrIllegalAction, n, e.rules.MinPlayers, e.rules.MaxPlayers)
	}
	rng := rand.New(rand.NewPCG(e.seed(), e.seed()))

	properties, cheques := newDecks()
	rng.Shuffle(len(properties), func(i, j int) { properties[i], properties[j] = properties[j], properties[i] })
	rng.Shuffle(len(cheques), func(i, j int) { cheques[i], cheques[j] = cheques[j], cheques[i] })
	aside := setAside(n)

	order := slices.Clone(players)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	seats := make([]Seat, 0, n)
	for _, id := range players {
		seats = append(seats, Seat{ID: id, Coins: e.rules.StartingCoins, Properties: []int{}, Cheques: []int{}})
	}

	s := &State{
		Stage:        StageBidding,
		Seats:        seats,
		TurnOrder:    order,
		propertyDeck: properties[aside:],
		chequeDeck:   cheques[aside:],
	}
	s.ChequesLeft = len(s.chequeDeck)
	s.dealProperties()
	return s, nil
}

func (e *Engine) IsTurn(st engine.State, playerID string) bool {
	s, ok := st.(*State)
	if !ok {
		return false
	}
	switch s.Stage {
	case StageBidding:
		return s.CurrentPlayer() == playerID
	case StageSelling:
		seat := s.Seat(playerID)
		return seat != nil && !seat.Offered
	}
	return false
}

func (e *Engine) Next(st engine.State, a engine.Action) (engine.State, error) {
	s, ok := st.(*State)
	if !ok {
		return nil, fmt.Errorf("forsale: unexpected state %T", st)
	}
	var m Move
	if err := json.Unmarshal(a.Payload, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", internal.ErrMalformedPayload, err)
	}

	next := s.clone()
	var err error
	switch m.Kind {
	case MoveBid:
		err = next.bid(a.PlayerID, m.Amount)
	case MovePass:
		err = next.pass(a.PlayerID)
	case MovePlay:
		err = next.play(a.PlayerID, m.Card)
	default:
		err = fmt.Errorf("%w: unknown move %q", internal.ErrIllegalAction, m.Kind)
	}
	if err != nil {
		return nil, err
	}
	return next, nil
}

// HandleAbandon ends the game as a forfeit: the absent seat is ranked last.
func (e *Engine) HandleAbandon(st engine.State, playerID string) engine.State {
	s, ok := st.(*State)
	if !ok {
		return st
	}
	next := s.clone()
	seat := next.Seat(playerID)
	if seat == nil || next.Stage == StageOver {
		return next
	}
	seat.Forfeited = true
	next.finish()
	return next
}

func (e *Engine) Finished(st engine.State) bool {
	s, ok := st.(*State)
	return ok && s.Stage == StageOver
}

func (e *Engine) Standings(st engine.State) []internal.Standing {
	s, ok := st.(*State)
	if !ok {
		return nil
	}
	if s.Standings != nil {
		return slices.Clone(s.Standings)
	}
	return standings(s.Seats)
}

// newDecks returns properties 1..30 and two cheques each of 0 and
// 2000..15000.
func newDecks() (properties, cheques []int) {
	properties = make([]int, 0, propertyCount)
	for v := 1; v <= propertyCount; v++ {
		properties = append(properties, v)
	}
	cheques = make([]int, 0, propertyCount)
	cheques = append(cheques, 0, 0)
	for v := 2000; v <= 15000; v += 1000 {
		cheques = append(cheques, v, v)
	}
	return properties, cheques
}

// setAside is how many cards of each deck stay out of a game so that every
// round deals one card per seat.
func setAside(players int) int {
	switch players {
	case 3:
		return 6
	case 4:
		return 2
	}
	return 0
}
