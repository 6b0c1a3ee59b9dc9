package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/adventure-agent/internal/services/events"
)

// EventsHandler handles Server-Sent Events (SSE) for live session transcripts
type EventsHandler struct {
	redisClient *redis.Client
	broadcaster *events.Broadcaster
	known       func(uuid.UUID) bool
	logger      *slog.Logger

	keepalive time.Duration
}

// NewEventsHandler creates a new events handler. known reports whether a
// session exists; nil accepts every ID.
func NewEventsHandler(redisClient *redis.Client, broadcaster *events.Broadcaster, known func(uuid.UUID) bool, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		redisClient: redisClient,
		broadcaster: broadcaster,
		known:       known,
		logger:      logger,
		keepalive:   30 * time.Second,
	}
}

// ServeHTTP streams a session's events: the retained history first (unless
// ?replay=false), then everything published while the client stays connected.
// GET /v1/sessions/{id}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.logger.Warn("Method not allowed for events endpoint",
			"method", r.Method,
			"path", r.URL.Path)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 4 || pathParts[0] != "v1" || pathParts[1] != "sessions" || pathParts[3] != "events" {
		h.writeError(w, http.StatusBadRequest, "Invalid path. Expected /v1/sessions/{id}/events")
		return
	}

	sessionID, err := uuid.Parse(pathParts[2])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format.")
		return
	}
	if h.known != nil && !h.known(sessionID) {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	// subscribe before reading history so nothing falls in between
	ctx := r.Context()
	pubsub := h.redisClient.Subscribe(ctx, events.Channel(sessionID))
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()
	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Error("Failed to subscribe", "session_id", sessionID.String(), "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "Event stream unavailable")
		return
	}

	h.logger.Info("SSE connection established",
		"session_id", sessionID.String(),
		"remote_addr", r.RemoteAddr)

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	h.sendSSE(w, "connected", map[string]any{
		"session_id": sessionID.String(),
		"message":    "Connected to event stream",
	})

	var replayedUpTo time.Time
	if r.URL.Query().Get("replay") != "false" {
		history, err := h.broadcaster.Replay(ctx, sessionID)
		if err != nil {
			h.logger.Warn("Failed to replay session history", "session_id", sessionID.String(), "error", err)
		}
		for _, event := range history {
			h.sendSSE(w, string(event.Type), event)
			replayedUpTo = event.Timestamp
		}
	}

	msgChan := pubsub.Channel()
	keepaliveTicker := time.NewTicker(h.keepalive)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected",
				"session_id", sessionID.String())
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.logger.Error("Failed to unmarshal event", "error", err, "payload", msg.Payload)
				continue
			}
			// already delivered by the replay
			if event.Type != events.EventTypeStream && !event.Timestamp.After(replayedUpTo) {
				continue
			}
			h.sendSSE(w, string(event.Type), event)

		case <-keepaliveTicker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// sendSSE sends a Server-Sent Event to the client
func (h *EventsHandler) sendSSE(w http.ResponseWriter, eventType string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		h.logger.Error("Failed to write event type", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(dataJSON)); err != nil {
		h.logger.Error("Failed to write event data", "error", err)
		return
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (h *EventsHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
