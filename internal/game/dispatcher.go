package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/websockets"
)

// =============================================================================
// MESSAGE DISPATCH
// =============================================================================

// Dispatcher decodes inbound frames and routes them to rooms. Every failure
// is answered with an ERROR frame to the sender only.
type Dispatcher struct {
	directory *Directory
	registry  *websockets.Registry
	logger    *zap.Logger
}

func NewDispatcher(directory *Directory, registry *websockets.Registry, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		directory: directory,
		registry:  registry,
		logger:    logger.Named("dispatcher"),
	}
	registry.OnUnbind(d.unbound)
	return d
}

// Dispatch handles one frame that arrived on c for roomID.
func (d *Dispatcher) Dispatch(c *websockets.Conn, roomID string, frame []byte) {
	var msg internal.Message[json.RawMessage]
	if err := json.Unmarshal(frame, &msg); err != nil || msg.Type == "" {
		d.reject(c, fmt.Errorf("%w: expected {\"type\":...,\"payload\":...}", internal.ErrMalformedPayload))
		return
	}
	d.logger.Debug("frame received", zap.String("conn_id", c.ID()), zap.String("type", msg.Type))

	var err error
	switch msg.Type {
	case internal.TypeJoin:
		err = d.join(c, roomID, msg.Payload)
	case internal.TypeAction:
		err = d.action(c, msg.Payload)
	case internal.TypeLeave:
		d.leave(c)
	case internal.TypeReady:
		err = d.ready(c, msg.Payload)
	case internal.TypeChat:
		err = d.chat(c, msg.Payload)
	case internal.TypePing:
		d.reply(c, internal.TypePong, internal.PongData{})
	default:
		err = fmt.Errorf("%w: %q", internal.ErrUnknownMessageType, msg.Type)
	}
	if err != nil {
		d.reject(c, err)
	}
}

func (d *Dispatcher) join(c *websockets.Conn, roomID string, raw json.RawMessage) error {
	var p internal.JoinPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	p.PlayerID = strings.TrimSpace(p.PlayerID)
	if p.PlayerID == "" {
		return fmt.Errorf("%w: playerId is required", internal.ErrMalformedPayload)
	}
	if b, ok := c.Binding(); ok {
		if b.RoomID == roomID && b.PlayerID == p.PlayerID {
			return internal.ErrAlreadyJoined
		}
		return fmt.Errorf("%w: already playing as %q", internal.ErrAlreadyBound, b.PlayerID)
	}

	if err := d.registry.Bind(c, roomID, p.PlayerID); err != nil {
		return err
	}
	if _, _, err := d.directory.Join(roomID, p.PlayerID, p.DisplayName, c); err != nil {
		d.registry.Unbind(c)
		return err
	}
	return nil
}

func (d *Dispatcher) action(c *websockets.Conn, raw json.RawMessage) error {
	room, b, err := d.bound(c)
	if err != nil {
		return err
	}
	if !isObject(raw) {
		return fmt.Errorf("%w: action payload must be an object", internal.ErrMalformedPayload)
	}
	_, err = room.ApplyAction(b.PlayerID, raw)
	return err
}

// leave is idempotent: an unbound connection has nothing to leave.
func (d *Dispatcher) leave(c *websockets.Conn) {
	b, ok := c.Binding()
	if !ok {
		return
	}
	if room, ok := d.directory.Get(b.RoomID); ok {
		room.Disconnect(b.PlayerID, c)
	}
	d.registry.Unbind(c)
}

func (d *Dispatcher) ready(c *websockets.Conn, raw json.RawMessage) error {
	var p internal.ReadyPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if p.Ready == nil {
		return fmt.Errorf("%w: ready is required", internal.ErrMalformedPayload)
	}
	room, b, err := d.bound(c)
	if err != nil {
		return err
	}
	return room.Ready(b.PlayerID, *p.Ready)
}

func (d *Dispatcher) chat(c *websockets.Conn, raw json.RawMessage) error {
	var p internal.ChatPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	room, b, err := d.bound(c)
	if err != nil {
		return err
	}
	return room.Chat(b.PlayerID, p.Message)
}

// bound resolves the room c joined. A binding to a room that has since been
// destroyed is dropped so the client can join again.
func (d *Dispatcher) bound(c *websockets.Conn) (*Room, websockets.Binding, error) {
	b, ok := c.Binding()
	if !ok {
		return nil, websockets.Binding{}, internal.ErrNotJoined
	}
	room, ok := d.directory.Get(b.RoomID)
	if !ok {
		d.registry.Unbind(c)
		return nil, websockets.Binding{}, internal.ErrRoomClosed
	}
	return room, b, nil
}

// unbound runs when a bound connection drops.
func (d *Dispatcher) unbound(b websockets.Binding, c *websockets.Conn) {
	if room, ok := d.directory.Get(b.RoomID); ok {
		room.Disconnect(b.PlayerID, c)
	}
}

func (d *Dispatcher) reject(c *websockets.Conn, err error) {
	data := internal.ErrorDataFrom(err)
	if data.Code == "InternalError" {
		d.logger.Error("request failed", zap.String("conn_id", c.ID()), zap.Error(err))
	} else {
		d.logger.Debug("request rejected", zap.String("conn_id", c.ID()), zap.String("code", data.Code), zap.Error(err))
	}
	d.reply(c, internal.TypeError, data)
}

func (d *Dispatcher) reply(c *websockets.Conn, msgType string, payload any) {
	frame, err := encode(msgType, payload)
	if err != nil {
		d.logger.Error("encoding reply", zap.String("type", msgType), zap.Error(err))
		return
	}
	d.registry.Send(c, frame)
}

func decodePayload(raw json.RawMessage, v any) error {
	if !isObject(raw) {
		return fmt.Errorf("%w: payload must be an object", internal.ErrMalformedPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", internal.ErrMalformedPayload, err)
	}
	return nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
