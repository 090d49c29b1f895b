package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// YouTubeClient talks to the YouTube Data API for search and video
// metadata. It is the only external collaborator of the engine and is
// never called while a state lock is held.
type YouTubeClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

type SearchResult struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channel_title"`
}

func NewYouTubeClient(apiKey string) *YouTubeClient {
	return &YouTubeClient{
		apiKey:  apiKey,
		baseURL: "https://www.googleapis.com/youtube/v3",
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// VideoDetails returns title and duration in seconds for a video id.
func (y *YouTubeClient) VideoDetails(ctx context.Context, videoID string) (string, int64, error) {
	response := struct {
		Items []struct {
			Snippet struct {
				Title        string `json:"title"`
				ChannelTitle string `json:"channelTitle"`
			} `json:"snippet"`
			ContentDetails struct {
				Duration string `json:"duration"`
			} `json:"contentDetails"`
		} `json:"items"`
	}{}

	params := map[string]string{
		"part": "snippet,contentDetails",
		"id":   videoID,
	}
	if err := y.get(ctx, "/videos", params, &response); err != nil {
		return "", 0, err
	}
	if len(response.Items) == 0 {
		return "", 0, errors.New("no item returned from YouTube")
	}

	item := response.Items[0]
	return item.Snippet.Title, parseISODuration(item.ContentDetails.Duration), nil
}

// Search returns up to maxResults videos matching query.
func (y *YouTubeClient) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	response := struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title        string `json:"title"`
				ChannelTitle string `json:"channelTitle"`
			} `json:"snippet"`
		} `json:"items"`
	}{}

	params := map[string]string{
		"part":       "snippet",
		"type":       "video",
		"q":          query,
		"maxResults": fmt.Sprintf("%d", maxResults),
	}
	if err := y.get(ctx, "/search", params, &response); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(response.Items))
	for _, item := range response.Items {
		results = append(results, SearchResult{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelTitle: item.Snippet.ChannelTitle,
		})
	}
	return results, nil
}

func (y *YouTubeClient) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+path, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	q.Add("key", y.apiKey)
	for k, v := range params {
		q.Add(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := y.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("youtube api returned %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseISODuration handles the PT#H#M#S durations the API returns.
// Any unit may be absent.
func parseISODuration(d string) int64 {
	if !strings.HasPrefix(d, "PT") {
		return 0
	}
	var total, n int64
	for _, r := range d[2:] {
		switch {
		case r >= '0' && r <= '9':
			n = n*10 + int64(r-'0')
		case r == 'H':
			total += n * 3600
			n = 0
		case r == 'M':
			total += n * 60
			n = 0
		case r == 'S':
			total += n
			n = 0
		default:
			return 0
		}
	}
	return total
}
