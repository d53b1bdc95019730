package game

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/websockets"
)

// Outbox delivers encoded frames. Implementations must not block.
type Outbox interface {
	Send(c *websockets.Conn, frame []byte)
	Broadcast(conns []*websockets.Conn, frame []byte)
}

func encode[T any](msgType string, payload T) ([]byte, error) {
	return json.Marshal(internal.Message[T]{Type: msgType, Payload: payload})
}

// broadcastLocked encodes once and queues the frame for every member.
func broadcastLocked[T any](r *Room, msgType string, payload T) {
	broadcastToLocked(r, r.conns(), msgType, payload)
}

func broadcastToLocked[T any](r *Room, conns []*websockets.Conn, msgType string, payload T) {
	if len(conns) == 0 {
		return
	}
	frame, err := encode(msgType, payload)
	if err != nil {
		r.logger.Error("encoding broadcast", zap.String("type", msgType), zap.Error(err))
		return
	}
	r.outbox.Broadcast(conns, frame)
}

func sendLocked[T any](r *Room, c *websockets.Conn, msgType string, payload T) {
	frame, err := encode(msgType, payload)
	if err != nil {
		r.logger.Error("encoding frame", zap.String("type", msgType), zap.Error(err))
		return
	}
	r.outbox.Send(c, frame)
}
