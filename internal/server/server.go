package server

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal/config"
	"github.com/scythe504/forsale-backend/internal/forsale"
	"github.com/scythe504/forsale-backend/internal/game"
	"github.com/scythe504/forsale-backend/internal/store"
	"github.com/scythe504/forsale-backend/internal/websockets"
)

type Server struct {
	cfg     config.Config
	logger  *zap.Logger
	archive store.Archive

	registry   *websockets.Registry
	directory  *game.Directory
	dispatcher *game.Dispatcher
	maxPlayers int
	startedAt  time.Time
}

// NewServer wires the connection registry, the room directory and the
// ForSale rules together. The archive receives every finished game.
func NewServer(cfg config.Config, logger *zap.Logger, archive store.Archive, opts ...forsale.Option) (*Server, error) {
	eng, err := forsale.New(forsale.Rules{
		MinPlayers:    cfg.Game.MinPlayers,
		MaxPlayers:    cfg.Game.MaxPlayers,
		StartingCoins: cfg.Game.StartingCoins,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("configuring game rules: %w", err)
	}

	registry := websockets.NewRegistry(websockets.Config{
		WriteWait:      cfg.Transport.WriteWait,
		PongWait:       cfg.Transport.PongWait,
		MaxMessageSize: cfg.Transport.MaxMessageSize,
		SendBuffer:     cfg.Transport.SendBuffer,
	}, logger)
	directory := game.NewDirectory(eng, registry, game.Options{
		ReconnectGrace: cfg.Game.ReconnectGrace,
		Results:        archive,
	}, logger)

	_, maxPlayers := eng.Limits()
	return &Server{
		cfg:        cfg,
		logger:     logger.Named("http"),
		archive:    archive,
		registry:   registry,
		directory:  directory,
		dispatcher: game.NewDispatcher(directory, registry, logger),
		maxPlayers: maxPlayers,
		startedAt:  time.Now(),
	}, nil
}

// HTTPServer returns a listener-ready http.Server for cfg.Server.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.RegisterRoutes(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
}

// Shutdown closes every room and connection. Call it after the HTTP server
// has stopped accepting requests.
func (s *Server) Shutdown() {
	s.directory.Close()
	s.registry.Close()
	s.logger.Info("rooms and connections closed")
}
