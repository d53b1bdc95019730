// Command api runs the ForSale room server: HTTP endpoints plus one websocket
// per player.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal/config"
	"github.com/scythe504/forsale-backend/internal/logging"
	"github.com/scythe504/forsale-backend/internal/server"
	"github.com/scythe504/forsale-backend/internal/store"
)

func main() {
	cmd := &cli.Command{
		Name:  "forsale",
		Usage: "multiplayer ForSale game server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				Sources: cli.EnvVars("FORSALE_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before reading the environment",
				Value: ".env",
			},
			&cli.StringFlag{Name: "host", Usage: "interface to listen on"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "port to listen on"},
			&cli.BoolFlag{Name: "reload", Usage: "watch the config file and apply log level changes"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("forsale: %v", err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	// 1. Configuration, flags win over file and environment
	v, err := config.New(cmd.String("config"), cmd.String("env-file"))
	if err != nil {
		return err
	}
	if cmd.IsSet("host") {
		v.Set("server.host", cmd.String("host"))
	}
	if cmd.IsSet("port") {
		v.Set("server.port", cmd.Int("port"))
	}
	if cmd.IsSet("reload") {
		v.Set("server.reload", cmd.Bool("reload"))
	}
	cfg, err := config.LoadFromViper(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// 2. Logging
	logger, level, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Server.Reload && v.ConfigFileUsed() != "" {
		config.Watch(v, func(next config.Config) {
			if err := logging.SetLevel(level, next.Logging.Level); err != nil {
				logger.Warn("applying reloaded log level", zap.Error(err))
				return
			}
			logger.Info("config reloaded", zap.String("log_level", next.Logging.Level))
		}, func(err error) {
			logger.Warn("ignoring invalid config change", zap.Error(err))
		})
		logger.Info("watching config file", zap.String("path", v.ConfigFileUsed()))
	}

	// 3. Results archive
	var archive store.Archive = store.Discard{}
	if cfg.Database.DSN != "" {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := store.Open(openCtx, cfg.Database.DSN)
		cancel()
		if err != nil {
			return fmt.Errorf("opening results archive: %w", err)
		}
		archive = db
		logger.Info("results archive connected")
	}
	defer archive.Close()

	// 4. Rooms and HTTP
	srv, err := server.NewServer(cfg, logger, archive)
	if err != nil {
		return err
	}
	httpServer := srv.HTTPServer()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", httpServer.Addr),
			zap.Int("min_players", cfg.Game.MinPlayers),
			zap.Int("max_players", cfg.Game.MaxPlayers),
			zap.Duration("reconnect_grace", cfg.Game.ReconnectGrace))
		serveErr <- httpServer.ListenAndServe()
	}()

	// 5. Graceful shutdown
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	srv.Shutdown()

	logger.Info("server exiting")
	return nil
}
