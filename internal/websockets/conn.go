package websockets

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
)

var errSendBufferFull = errors.New("send buffer full")

// Binding ties a connection to the player it joined a room as.
type Binding struct {
	RoomID   string
	PlayerID string
}

// Conn is one client connection. Outbound frames go through a buffered
// channel drained by a single writer goroutine.
type Conn struct {
	id       string
	ws       *websocket.Conn
	registry *Registry
	send     chan []byte

	mu      sync.Mutex
	closed  bool
	binding *Binding
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Binding() (Binding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.binding == nil {
		return Binding{}, false
	}
	return *c.binding, true
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Outbound exposes queued frames. The write pump is its only reader for
// connections backed by a socket.
func (c *Conn) Outbound() <-chan []byte { return c.send }

func (c *Conn) enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return internal.ErrConnectionClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		// Nothing may be queued after a dropped frame.
		c.closed = true
		close(c.send)
		return errSendBufferFull
	}
}

// shutdown closes the send channel once, which makes the write pump send a
// close frame and drop the socket.
func (c *Conn) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump runs handle for every text frame, in arrival order, until the
// socket fails or the peer stops answering pings.
func (c *Conn) readPump(handle func(*Conn, []byte)) {
	cfg, logger := c.registry.cfg, c.registry.logger
	defer c.registry.Unregister(c)

	c.ws.SetReadLimit(cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		kind, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Info("connection dropped", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		handle(c, frame)
	}
}

func (c *Conn) writePump() {
	cfg, logger := c.registry.cfg, c.registry.logger
	ticker := time.NewTicker(cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("write failed", zap.String("conn_id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
