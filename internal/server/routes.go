package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal"
	"github.com/scythe504/forsale-backend/internal/utils"
)

//go:embed protocol.md
var protocolDoc []byte

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
	healthTimeout       = 2 * time.Second
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS and logging middleware
	r.Use(s.corsMiddleware)
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/", s.HelloWorldHandler)
	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.DocsHandler).Methods(http.MethodGet)

	r.HandleFunc("/rooms", s.CreateRoomHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}", s.GetRoomHandler).Methods(http.MethodGet)
	r.HandleFunc("/rooms-available", s.GetRoomToJoin)
	r.HandleFunc("/results", s.RecentResultsHandler).Methods(http.MethodGet)

	r.HandleFunc("/ws/{roomId}", s.dispatcher.ServeWS)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := s.cfg.Server.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// If it's a websocket upgrade, skip further CORS checks
		if isUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs one line per request. Upgrades are passed through
// untouched since the websocket layer needs the raw ResponseWriter.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	s.respond(w, time.Now().UnixMilli(), http.StatusOK, map[string]string{"message": "ForSale game server"})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	archive := s.archive.Health(ctx)

	status := http.StatusOK
	if archive["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	s.respond(w, startTime, status, map[string]any{
		"status":      archive["status"],
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
		"connections": s.registry.Count(),
		"rooms":       s.directory.Stats(),
		"archive":     archive,
	})
}

func (s *Server) DocsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write(protocolDoc)
}

// CreateRoomHandler hands out a fresh room code. The room itself comes to
// life when the first player joins /ws/{roomId}.
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	for {
		code := utils.GenerateRoomCode(utils.RoomCodeLength)
		if _, taken := s.directory.Get(code); taken {
			continue
		}
		s.respond(w, startTime, http.StatusCreated, map[string]string{
			"roomId": code,
			"ws":     "/ws/" + code,
		})
		return
	}
}

func (s *Server) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	roomID := utils.NormalizeRoomID(mux.Vars(r)["roomId"])

	room, ok := s.directory.Get(roomID)
	if !ok {
		s.respond(w, startTime, http.StatusNotFound, "Room not found")
		return
	}
	summary := room.Summary()
	s.respond(w, startTime, http.StatusOK, map[string]any{
		"room":    summary,
		"canJoin": summary.CanJoin(s.maxPlayers),
	})
}

func (s *Server) GetRoomToJoin(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	if roomID := s.directory.Joinable(); roomID != "" {
		// Found a joinable room - SUCCESS
		s.respond(w, startTime, http.StatusOK, roomID)
		return
	}
	// No joinable room found
	s.respond(w, startTime, http.StatusNotFound, "No joinable rooms available")
}

func (s *Server) RecentResultsHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	limit := defaultResultsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxResultsLimit {
			s.respond(w, startTime, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	results, err := s.archive.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("loading results", zap.Error(err))
		s.respond(w, startTime, http.StatusInternalServerError, "Could not load results")
		return
	}
	s.respond(w, startTime, http.StatusOK, results)
}

// respond wraps data in internal.Response with its timings filled in.
func (s *Server) respond(w http.ResponseWriter, startTime int64, status int, data any) {
	endTime := time.Now().UnixMilli()
	resp := internal.Response{
		StatusCode:    status,
		RespStartTime: startTime,
		RespEndTime:   endTime,
		NetRespTime:   endTime - startTime,
		Data:          data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("encoding response", zap.Error(err))
	}
}
