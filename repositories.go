package main

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateSuggestion = errors.New("song has already been suggested")
	ErrNotFound            = errors.New("suggestion not found")
	ErrAlreadyVoted        = errors.New("already voted for this song")
	ErrEmptyQueue          = errors.New("no suggestions to promote")
)

// appendToPlaylist asks ClearSuggestionsAndAppend to place the
// promoted song at the end instead of a specific position.
const appendToPlaylist = -1

// StateRepository owns all playlist and suggestion state. Every
// mutating method is atomic with respect to the others; no partial
// application is ever observable.
//
// Playlist returns playback order. Suggestions returns insertion
// order; callers rank for display themselves.
type StateRepository interface {
	Playlist() ([]Song, error)
	Suggestions() ([]Suggestion, error)

	// ReplacePlaylist swaps the whole playback order in one step.
	ReplacePlaylist(songs []Song) error

	// InsertSuggestion creates a suggestion for song with one initial
	// vote credited to voterID. Returns ErrDuplicateSuggestion if the
	// video is already queued.
	InsertSuggestion(song Song, voterID string) (*Suggestion, error)

	// IncrementVote adds exactly one vote. Increments are additive,
	// two concurrent votes are never collapsed into one. With
	// enforceSingleVote set, a repeat vote by the same voter fails
	// with ErrAlreadyVoted.
	IncrementVote(suggestionID, voterID string, enforceSingleVote bool) (*Suggestion, error)

	// ClearSuggestionsAndAppend is the atomic promotion primitive:
	// drop every suggestion and insert song into the playlist at the
	// given position (appendToPlaylist for the end).
	ClearSuggestionsAndAppend(song Song, at int) error

	// ClearSuggestions drops the queue without touching the playlist,
	// used when the promoted winner is already on the playlist.
	ClearSuggestions() error

	close()
}
