// this file defines the data structures to be used throughout
package main

import "sort"

// Song is one entry of the playlist. Identity is the YouTube video id;
// two songs with the same video id are the same song.
type Song struct {
	VideoID string `json:"video_id" db:"video_id"`
	Title   string `json:"title" db:"title"`
}

// Suggestion is a listener-proposed song waiting in the voting queue.
// Voters stays server-side, it never goes over the wire.
type Suggestion struct {
	ID      string   `json:"suggestion_id" db:"suggestion_id"`
	VideoID string   `json:"video_id" db:"video_id"`
	Title   string   `json:"title" db:"title"`
	Votes   int64    `json:"votes" db:"votes"`
	Voters  []string `json:"-" db:"-"`
}

type NowPlaying struct {
	State       string `json:"state"` // "idle" or "playing"
	Song        *Song  `json:"song"`
	PositionSec int64  `json:"position_sec"`
}

// Event is one push-channel message. Payload is always a full snapshot,
// never a diff, so late joiners need no catch-up logic.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventPlaylistUpdated    = "playlist_updated"
	EventSuggestionsUpdated = "suggestions_updated"
	EventNowPlaying         = "now_playing"
)

// RankSuggestions orders suggestions for display: votes descending,
// insertion order among equals. Storage order stays insertion order;
// ranking is a view concern.
func RankSuggestions(suggestions []Suggestion) []Suggestion {
	ranked := make([]Suggestion, len(suggestions))
	copy(ranked, suggestions)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Votes > ranked[j].Votes
	})
	return ranked
}
