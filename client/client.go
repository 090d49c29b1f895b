// Package client keeps a local mirror of the radio server's playlist,
// suggestion queue, and now-playing state. Every snapshot received,
// pushed or polled, fully replaces the local copy; the client never
// merges, so its view can lag but can't silently diverge.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

type Song struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
}

type Suggestion struct {
	ID      string `json:"suggestion_id"`
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	Votes   int64  `json:"votes"`
}

type NowPlaying struct {
	State       string `json:"state"`
	Song        *Song  `json:"song"`
	PositionSec int64  `json:"position_sec"`
}

type event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client is one observer of the shared radio state.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   string

	mu          sync.RWMutex
	playlist    []Song
	suggestions []Suggestion
	nowPlaying  NowPlaying

	conn *websocket.Conn

	// OnUpdate, if set, runs after every applied snapshot with the
	// event type that changed.
	OnUpdate func(eventType string)
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpc:      http.DefaultClient,
		nowPlaying: NowPlaying{State: "idle"},
	}
}

// Connect opens the push channel and applies snapshots as they arrive
// until the connection drops or ctx is done. The server sends a full
// snapshot right after connect, so no initial poll is needed.
func (c *Client) Connect(ctx context.Context) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	c.conn = conn

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.apply(message)
	}
}

// Poll fetches current playlist and suggestion snapshots over plain
// HTTP, for clients without a push connection.
func (c *Client) Poll(ctx context.Context) error {
	var playlist []Song
	if err := c.getJSON(ctx, "/api/playlist", &playlist); err != nil {
		return err
	}
	var suggestions []Suggestion
	if err := c.getJSON(ctx, "/api/suggestions", &suggestions); err != nil {
		return err
	}
	var nowPlaying NowPlaying
	if err := c.getJSON(ctx, "/api/now_playing", &nowPlaying); err != nil {
		return err
	}

	c.mu.Lock()
	c.playlist = playlist
	c.suggestions = suggestions
	c.nowPlaying = nowPlaying
	c.mu.Unlock()
	return nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// apply replaces local state wholesale from one pushed snapshot.
func (c *Client) apply(message []byte) {
	var evt event
	if err := json.Unmarshal(message, &evt); err != nil {
		return
	}

	c.mu.Lock()
	switch evt.Type {
	case "playlist_updated":
		var playlist []Song
		if json.Unmarshal(evt.Payload, &playlist) != nil {
			c.mu.Unlock()
			return
		}
		c.playlist = playlist
	case "suggestions_updated":
		var suggestions []Suggestion
		if json.Unmarshal(evt.Payload, &suggestions) != nil {
			c.mu.Unlock()
			return
		}
		c.suggestions = suggestions
	case "now_playing":
		var nowPlaying NowPlaying
		if json.Unmarshal(evt.Payload, &nowPlaying) != nil {
			c.mu.Unlock()
			return
		}
		c.nowPlaying = nowPlaying
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if c.OnUpdate != nil {
		c.OnUpdate(evt.Type)
	}
}

func (c *Client) Playlist() []Song {
	c.mu.RLock()
	defer c.mu.RUnlock()
	playlist := make([]Song, len(c.playlist))
	copy(playlist, c.playlist)
	return playlist
}

func (c *Client) Suggestions() []Suggestion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	suggestions := make([]Suggestion, len(c.suggestions))
	copy(suggestions, c.suggestions)
	return suggestions
}

func (c *Client) NowPlaying() NowPlaying {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nowPlaying
}

// StartSession obtains a listener token used as voter identity on
// subsequent suggest and vote calls.
func (c *Client) StartSession(ctx context.Context) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.postJSON(ctx, "/api/session", nil, &resp); err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

// Suggest submits a video id or URL to the suggestion queue.
func (c *Client) Suggest(ctx context.Context, videoOrURL, title string) (*Suggestion, error) {
	body := map[string]string{"video_id": videoOrURL, "title": title}
	var suggestion Suggestion
	if err := c.postJSON(ctx, "/api/suggestions", body, &suggestion); err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// Vote casts one vote for a queued suggestion.
func (c *Client) Vote(ctx context.Context, suggestionID string) (*Suggestion, error) {
	var suggestion Suggestion
	err := c.postJSON(ctx, "/api/suggestions/"+suggestionID+"/vote", nil, &suggestion)
	if err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// SaveOrder sends the full new playlist order. Local drag state stays
// client-side until this explicit save; a concurrent playlist_updated
// push simply replaces the underlying data.
func (c *Client) SaveOrder(ctx context.Context, songs []Song) error {
	return c.postJSON(ctx, "/api/playlist", songs, nil)
}

// PromoteWinner asks the server to move the top-voted suggestion into
// the playlist and reset the queue.
func (c *Client) PromoteWinner(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/promote_winner", nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("promote failed: %d %s", resp.StatusCode, buf.String())
	}
	return buf.String(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// APIError carries the server's status code so callers can tell a
// duplicate suggestion (409, already queued) from a hard failure.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsConflict reports whether err is the server saying "already there"
// rather than a real failure.
func IsConflict(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusConflict
}
