// Package websockets owns client connections: upgrading, the read and write
// pumps, the connection-to-player binding and non-blocking fan-out.
package websockets

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
)

type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	// SendBuffer is how many frames may queue for a slow reader before it
	// is disconnected.
	SendBuffer int
}

func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

func (c Config) pingPeriod() time.Duration { return c.PongWait * 9 / 10 }

// UnbindFunc is told when a bound connection goes away.
type UnbindFunc func(b Binding, c *Conn)

type Registry struct {
	cfg      Config
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[string]*Conn
	onUnbind UnbindFunc
}

func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	return &Registry{
		cfg:    cfg,
		logger: logger.Named("registry"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*Conn),
	}
}

// OnUnbind installs the hook run, outside any registry lock, each time a
// bound connection is unregistered.
func (r *Registry) OnUnbind(fn UnbindFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUnbind = fn
}

// Upgrade switches an HTTP request to a websocket and registers it.
func (r *Registry) Upgrade(w http.ResponseWriter, req *http.Request) (*Conn, error) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrading connection: %w", err)
	}
	return r.Register(ws), nil
}

// Register tracks a new connection. ws may be nil for a detached
// connection whose frames are read from Outbound.
func (r *Registry) Register(ws *websocket.Conn) *Conn {
	c := &Conn{
		id:       uuid.NewString(),
		ws:       ws,
		registry: r,
		send:     make(chan []byte, r.cfg.SendBuffer),
	}
	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()
	r.logger.Debug("connection registered", zap.String("conn_id", c.id))
	return c
}

// Serve starts the pumps. handle runs on the read goroutine, so frames from
// one connection are handled one at a time and in order.
func (r *Registry) Serve(c *Conn, handle func(*Conn, []byte)) {
	if c.ws == nil {
		return
	}
	go c.writePump()
	go c.readPump(handle)
}

func (r *Registry) Bind(c *Conn, roomID, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.id]; !ok {
		return internal.ErrConnectionClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.binding != nil {
		return fmt.Errorf("%w: already playing as %q", internal.ErrAlreadyBound, c.binding.PlayerID)
	}
	c.binding = &Binding{RoomID: roomID, PlayerID: playerID}
	return nil
}

func (r *Registry) Unbind(c *Conn) {
	c.mu.Lock()
	c.binding = nil
	c.mu.Unlock()
}

// Unregister forgets c and closes it. It is idempotent: the unbind hook runs
// at most once per connection.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	if _, ok := r.conns[c.id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, c.id)
	onUnbind := r.onUnbind
	r.mu.Unlock()

	c.mu.Lock()
	b := c.binding
	c.binding = nil
	c.mu.Unlock()

	c.shutdown()
	r.logger.Debug("connection unregistered", zap.String("conn_id", c.id))

	if b != nil && onUnbind != nil {
		onUnbind(*b, c)
	}
}

// Send queues frame without blocking. A connection whose buffer is full is
// closed on the spot; it is unregistered in the background so the caller
// never waits on the unbind hook.
func (r *Registry) Send(c *Conn, frame []byte) {
	err := c.enqueue(frame)
	switch {
	case err == nil:
	case errors.Is(err, errSendBufferFull):
		r.logger.Warn("slow consumer disconnected", zap.String("conn_id", c.id))
		go r.Unregister(c)
	default:
		r.logger.Debug("dropped frame for closed connection", zap.String("conn_id", c.id))
	}
}

func (r *Registry) Broadcast(conns []*Conn, frame []byte) {
	for _, c := range conns {
		r.Send(c, frame)
	}
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Close unregisters every connection.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		r.Unregister(c)
	}
}
