package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-agent/internal/services/events"
	"github.com/jwebster45206/adventure-agent/internal/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionResponse mirrors the API's create and reset payload
type SessionResponse struct {
	Session session.Info `json:"session"`
	Output  string       `json:"output,omitempty"`
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// doJSON sends body (if any) and decodes a successful response into out (if non-nil).
func doJSON(client *http.Client, method, url string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func createSession(client *http.Client, baseURL, game string) (*SessionResponse, error) {
	var out SessionResponse
	err := doJSON(client, http.MethodPost, baseURL+"/v1/sessions",
		map[string]string{"game": game}, http.StatusCreated, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &out, nil
}

func getSession(client *http.Client, baseURL string, id uuid.UUID) (*session.Info, error) {
	var info session.Info
	if err := doJSON(client, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s", baseURL, id), nil, http.StatusOK, &info); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &info, nil
}

func stepSession(client *http.Client, baseURL string, id uuid.UUID) error {
	return doJSON(client, http.MethodPost, fmt.Sprintf("%s/v1/sessions/%s/step", baseURL, id), nil, http.StatusOK, nil)
}

func autoplaySession(client *http.Client, baseURL string, id uuid.UUID, maxTurns int) error {
	return doJSON(client, http.MethodPost, fmt.Sprintf("%s/v1/sessions/%s/autoplay", baseURL, id),
		map[string]int{"max_turns": maxTurns}, http.StatusAccepted, nil)
}

func stopSession(client *http.Client, baseURL string, id uuid.UUID) error {
	return doJSON(client, http.MethodPost, fmt.Sprintf("%s/v1/sessions/%s/stop", baseURL, id), nil, http.StatusOK, nil)
}

func resetSession(client *http.Client, baseURL string, id uuid.UUID) error {
	return doJSON(client, http.MethodPost, fmt.Sprintf("%s/v1/sessions/%s/reset", baseURL, id), nil, http.StatusOK, nil)
}

// listenToSSE connects to the session's event stream and forwards events to a
// channel until the stream ends or ctx is cancelled.
func listenToSSE(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID, eventChan chan<- events.Event) error {
	url := fmt.Sprintf("%s/v1/sessions/%s/events", baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	return readEvents(ctx, resp.Body, eventChan)
}

// readEvents parses "event:" and "data:" lines; a blank line ends an event.
// The connected greeting is not an Event envelope and is dropped.
func readEvents(ctx context.Context, r io.Reader, eventChan chan<- events.Event) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var current events.Event
	var hasData bool

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if hasData && name != "connected" {
				select {
				case eventChan <- current:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			name, current, hasData = "", events.Event{}, false
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			name = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current); err == nil {
				hasData = true
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
