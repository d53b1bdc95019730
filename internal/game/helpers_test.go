package game_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/engine"
	"github.com/scythe504/forsale-backend/internal/game"
	"github.com/scythe504/forsale-backend/internal/websockets"
)

// counterState is a toy game: players take turns adding a positive delta.
type counterState struct {
	Players   []string `json:"players"`
	Turn      int      `json:"turn"`
	Total     int      `json:"total"`
	Abandoned []string `json:"abandoned,omitempty"`
	Done      bool     `json:"done"`
}

func (s *counterState) Clone() engine.State {
	c := *s
	c.Players = slices.Clone(s.Players)
	c.Abandoned = slices.Clone(s.Abandoned)
	return &c
}

type counterEngine struct {
	min, max int
	// anyTurn lets every player act at any time.
	anyTurn bool
	// finishAt ends the game once Total reaches it. Zero never finishes.
	finishAt int
	// keepOnAbandon leaves the game running when a seat is abandoned.
	keepOnAbandon bool
}

type delta struct {
	Delta int `json:"delta"`
}

func (e *counterEngine) Limits() (int, int) { return e.min, e.max }

func (e *counterEngine) CanStart(members []internal.Member) bool {
	if len(members) < e.min {
		return false
	}
	for _, m := range members {
		if !m.Ready {
			return false
		}
	}
	return true
}

func (e *counterEngine) NewGame(players []string) (engine.State, error) {
	return &counterState{Players: slices.Clone(players)}, nil
}

func (e *counterEngine) IsTurn(st engine.State, playerID string) bool {
	s := st.(*counterState)
	if e.anyTurn {
		return slices.Contains(s.Players, playerID)
	}
	return s.Players[s.Turn%len(s.Players)] == playerID
}

func (e *counterEngine) Next(st engine.State, a engine.Action) (engine.State, error) {
	var d delta
	if err := json.Unmarshal(a.Payload, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", internal.ErrMalformedPayload, err)
	}
	if d.Delta <= 0 {
		return nil, fmt.Errorf("%w: delta must be positive", internal.ErrIllegalAction)
	}
	s := st.Clone().(*counterState)
	s.Total += d.Delta
	s.Turn++
	if e.finishAt > 0 && s.Total >= e.finishAt {
		s.Done = true
	}
	return s, nil
}

func (e *counterEngine) HandleAbandon(st engine.State, playerID string) engine.State {
	s := st.Clone().(*counterState)
	s.Abandoned = append(s.Abandoned, playerID)
	if !e.keepOnAbandon {
		s.Done = true
	}
	return s
}

func (e *counterEngine) Finished(st engine.State) bool { return st.(*counterState).Done }

func (e *counterEngine) Standings(st engine.State) []internal.Standing {
	s := st.(*counterState)
	out := make([]internal.Standing, 0, len(s.Players))
	for i, id := range s.Players {
		out = append(out, internal.Standing{PlayerID: id, Score: s.Total, Position: i + 1})
	}
	return out
}

// frame is a decoded outbound message.
type frame = internal.Message[json.RawMessage]

func newRegistry() *websockets.Registry {
	cfg := websockets.DefaultConfig()
	cfg.SendBuffer = 1024
	return websockets.NewRegistry(cfg, zap.NewNop())
}

func newRoom(eng engine.Engine, grace time.Duration) (*game.Room, *websockets.Registry) {
	reg := newRegistry()
	return game.NewRoom("ROOM1", eng, reg, game.Options{ReconnectGrace: grace}, zap.NewNop()), reg
}

func joinRoom(t require.TestingT, room *game.Room, reg *websockets.Registry, playerID string) *websockets.Conn {
	c := reg.Register(nil)
	_, err := room.Join(playerID, "", c)
	require.NoError(t, err)
	return c
}

func next(t *testing.T, c *websockets.Conn) frame {
	t.Helper()
	select {
	case raw, ok := <-c.Outbound():
		require.True(t, ok, "connection closed")
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return frame{}
	}
}

// expect skips frames until one of msgType arrives.
func expect(t *testing.T, c *websockets.Conn, msgType string) frame {
	t.Helper()
	for {
		if f := next(t, c); f.Type == msgType {
			return f
		}
	}
}

// drain returns every frame already queued on c.
func drain(c *websockets.Conn) []frame {
	var out []frame
	for {
		select {
		case raw, ok := <-c.Outbound():
			if !ok {
				return out
			}
			var f frame
			if json.Unmarshal(raw, &f) == nil {
				out = append(out, f)
			}
		default:
			return out
		}
	}
}

func decode[T any](t require.TestingT, f frame) T {
	var v T
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	return v
}

func memberIDs(members []internal.Member) []string {
	return internal.MemberIDs(members)
}

func payload(d int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"delta":%d}`, d))
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
