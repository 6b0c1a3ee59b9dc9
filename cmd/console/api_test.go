package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-agent/internal/services/events"
	"github.com/jwebster45206/adventure-agent/internal/session"
)

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		`event: connected`,
		`data: {"session_id":"abc"}`,
		``,
		`: keepalive`,
		``,
		`event: command-sent`,
		`data: {"type":"command-sent","session_id":"abc","turn":1,"data":{"text":"N"}}`,
		``,
		`event: game-text`,
		`data: not json`,
		``,
		`event: game-text`,
		`data: {"type":"game-text","session_id":"abc","turn":1,"data":{"text":"North of House"}}`,
		``,
	}, "\n")

	ch := make(chan events.Event, 10)
	require.NoError(t, readEvents(context.Background(), strings.NewReader(stream), ch))
	close(ch)

	var got []events.Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, events.EventTypeCommandSent, got[0].Type)
	assert.Equal(t, "N", got[0].Data["text"])
	assert.Equal(t, events.EventTypeGameText, got[1].Type)
	assert.Equal(t, 1, got[1].Turn)
}

func TestSessionCalls(t *testing.T) {
	id := uuid.New()
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/v1/sessions":
			var req map[string]string
			_ = json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(SessionResponse{
				Session: session.Info{ID: id, Game: req["game"]},
				Output:  "West of House",
			})
		case "/v1/sessions/" + id.String() + "/autoplay":
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{}`))
		case "/v1/sessions/" + id.String() + "/step":
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "autoplay is running"})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("nope"))
		}
	}))
	defer srv.Close()

	client := srv.Client()
	assert.True(t, testConnection(client, srv.URL))

	created, err := createSession(client, srv.URL, "builtin:house")
	require.NoError(t, err)
	assert.Equal(t, id, created.Session.ID)
	assert.Equal(t, "builtin:house", created.Session.Game)
	assert.Equal(t, "West of House", created.Output)

	require.NoError(t, autoplaySession(client, srv.URL, id, 5))

	err = stepSession(client, srv.URL, id)
	require.Error(t, err)
	assert.Equal(t, "autoplay is running", err.Error())

	err = resetSession(client, srv.URL, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "POST /v1/sessions/"+id.String()+"/autoplay")
}
