package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-agent/internal/session"
	"github.com/jwebster45206/adventure-agent/pkg/autoplay"
	"github.com/jwebster45206/adventure-agent/pkg/game"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSessionRequest names the game to play; empty selects the server default.
type CreateSessionRequest struct {
	Game string `json:"game"`
}

// AutoplayRequest bounds a background run; 0 plays until stopped.
type AutoplayRequest struct {
	MaxTurns int `json:"max_turns"`
}

// SessionResponse pairs a session with game text produced by the request.
type SessionResponse struct {
	Session session.Info `json:"session"`
	Output  string       `json:"output,omitempty"`
}

type SessionsHandler struct {
	manager *session.Manager
	logger  *slog.Logger
}

func NewSessionsHandler(manager *session.Manager, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		manager: manager,
		logger:  logger,
	}
}

// ServeHTTP routes session requests
// Routes:
// POST   /v1/sessions                  - Create and boot a session
// GET    /v1/sessions                  - List sessions
// GET    /v1/sessions/{id}             - Describe a session
// GET    /v1/sessions/{id}/history     - Persisted turns (?limit=N)
// POST   /v1/sessions/{id}/step        - Play one turn
// POST   /v1/sessions/{id}/autoplay    - Play in the background
// POST   /v1/sessions/{id}/stop        - Halt autoplay
// POST   /v1/sessions/{id}/reset       - Restart the game with empty memory
// DELETE /v1/sessions/{id}             - End the session
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.writeJSON(w, http.StatusOK, h.manager.List())
		default:
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST, GET")
		}
		return
	}

	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		h.writeError(w, http.StatusNotFound, "Unknown session route")
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleRead(w, id)
	case action == "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case action == "history" && r.Method == http.MethodGet:
		h.handleHistory(w, r, id)
	case action == "step" && r.Method == http.MethodPost:
		h.handleStep(w, r, id)
	case action == "autoplay" && r.Method == http.MethodPost:
		h.handleAutoplay(w, r, id)
	case action == "stop" && r.Method == http.MethodPost:
		h.handleStop(w, id)
	case action == "reset" && r.Method == http.MethodPost:
		h.handleReset(w, r, id)
	case action == "" || action == "history" || action == "step" || action == "autoplay" || action == "stop" || action == "reset":
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed for "+r.URL.Path)
	default:
		h.writeError(w, http.StatusNotFound, "Unknown session route")
	}
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	s, boot, err := h.manager.Create(r.Context(), req.Game)
	if err != nil {
		h.logger.Error("Failed to create session", "game", req.Game, "error", err)
		if errors.Is(err, game.ErrUnknownGame) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to start game")
		return
	}

	info, err := h.manager.Info(s.ID)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, SessionResponse{Session: info, Output: boot})
}

func (h *SessionsHandler) handleRead(w http.ResponseWriter, id uuid.UUID) {
	info, err := h.manager.Info(id)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *SessionsHandler) handleHistory(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	turns, err := h.manager.History(r.Context(), id, limit)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, turns)
}

func (h *SessionsHandler) handleStep(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	result, err := h.manager.Step(r.Context(), id)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *SessionsHandler) handleAutoplay(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req AutoplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.MaxTurns < 0 {
		h.writeError(w, http.StatusBadRequest, "max_turns must not be negative")
		return
	}

	if err := h.manager.Autoplay(id, req.MaxTurns); err != nil {
		h.writeManagerError(w, err)
		return
	}
	info, err := h.manager.Info(id)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, info)
}

func (h *SessionsHandler) handleStop(w http.ResponseWriter, id uuid.UUID) {
	if err := h.manager.Stop(id); err != nil {
		h.writeManagerError(w, err)
		return
	}
	h.handleRead(w, id)
}

func (h *SessionsHandler) handleReset(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	boot, err := h.manager.Reset(r.Context(), id)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	info, err := h.manager.Info(id)
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SessionResponse{Session: info, Output: boot})
}

func (h *SessionsHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.writeManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeManagerError maps session and loop errors onto status codes.
func (h *SessionsHandler) writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, session.ErrAutoplayRunning),
		errors.Is(err, autoplay.ErrBusy),
		errors.Is(err, autoplay.ErrStopped),
		errors.Is(err, autoplay.ErrHalted),
		errors.Is(err, autoplay.ErrNotStarted):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Session request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *SessionsHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: message})
}

func (h *SessionsHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
