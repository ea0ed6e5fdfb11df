package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arcade-social/internal/arcade"
	"github.com/arcade-social/internal/auth"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/websocket"
)

// Probe reports whether a backing service is reachable
type Probe func(ctx context.Context) error

// Handler provides HTTP handlers for the arcade API
type Handler struct {
	app    *arcade.App
	hub    *websocket.Hub
	issuer *auth.Issuer
	probes map[string]Probe
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(app *arcade.App, hub *websocket.Hub, issuer *auth.Issuer, logger *slog.Logger) *Handler {
	return &Handler{
		app:    app,
		hub:    hub,
		issuer: issuer,
		probes: make(map[string]Probe),
		logger: logger,
	}
}

// WithProbe adds a readiness check
func (h *Handler) WithProbe(name string, p Probe) *Handler {
	h.probes[name] = p
	return h
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Group(func(r chi.Router) {
			r.Use(h.optionalSession)

			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)
			r.Get("/auth/{provider}", h.BeginOAuth)
			r.Get("/auth/{provider}/callback", h.CompleteOAuth)

			r.Get("/leaderboards", h.ListGames)
			r.Get("/leaderboards/{game}", h.GetLeaderboard)
			r.Get("/stats", h.GetStats)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)

			r.Get("/profile", h.GetProfile)
			r.Put("/profile/username", h.ChangeUsername)
			r.Get("/profile/history", h.GetScoreHistory)

			r.Post("/scores", h.SubmitScore)

			r.Get("/friends", h.ListFriends)
			r.Get("/friends/requests", h.ListFriendRequests)
			r.Post("/friends/requests", h.SendFriendRequest)
			r.Post("/friends/requests/{id}/accept", h.AcceptFriendRequest)
			r.Post("/friends/requests/{id}/reject", h.RejectFriendRequest)
			r.Post("/friends/{id}/invite", h.InviteFriend)

			r.Get("/chats", h.ListChats)
			r.Post("/chats", h.OpenChat)
			r.Get("/chats/{id}/messages", h.ListMessages)
			r.Post("/chats/{id}/messages", h.SendMessage)

			r.Get("/notifications", h.ListNotifications)

			r.Get("/preferences", h.GetPreferences)
			r.Post("/preferences/favorites/{game}", h.ToggleFavorite)
			r.Post("/preferences/pins/{game}", h.TogglePin)

			r.Get("/presence", h.GetPresence)
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a success JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
		Code:    auth.CodeOf(err),
	})
}

// writeFailure maps a component error to its status and writes it
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		err = domain.ErrInternalError
	}
	h.writeError(w, status, err)
}

func statusOf(err error) int {
	switch auth.CodeOf(err) {
	case "":
	case auth.CodeEmailInUse:
		return http.StatusConflict
	case auth.CodeUserNotFound, auth.CodeWrongPassword:
		return http.StatusUnauthorized
	case auth.CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}

	switch domain.KindOf(err) {
	case domain.KindNotAuthenticated:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalid:
		return http.StatusBadRequest
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON request body into v
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.ErrInvalidRequest
	}
	return n, nil
}

// HandleWebSocket handles WebSocket connections
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.app, h.issuer, h.logger, w, r)
}

// GetStats returns connection statistics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"websocket_connections": h.hub.ConnectionCount(),
		"games":                 h.app.Board().Games(),
	}
	h.writeSuccess(w, stats)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports ready once every probe passes
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			h.logger.Warn("readiness probe failed", "probe", name, "error", err)
			h.writeError(w, http.StatusServiceUnavailable, errors.New(name+" unavailable"))
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}
