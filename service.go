package main

// this file implements the mutation engine - every write to shared
// state is validated and applied here

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type Service interface {
	Playlist() ([]Song, error)
	Suggestions() ([]Suggestion, error)
	Suggest(input, title, voterID string) (*Suggestion, error)
	Vote(suggestionID, voterID string) (*Suggestion, error)
	ReorderPlaylist(songs []Song) error
	PromoteWinner() (string, error)
	close()
}

// Positioner reports where the playback engine currently is, used by
// the insert_next promotion placement.
type Positioner interface {
	CurrentIndex() int
}

type ServiceImpl struct {
	repo   StateRepository
	pub    Publisher
	yt     *YouTubeClient
	logger *log.Logger

	oneVotePerListener bool
	placement          string
	positioner         Positioner

	// queueMu serializes Suggest/Vote/Promote on the suggestion queue;
	// playlistMu serializes Reorder and Promote's append step. Promote
	// takes queueMu first, then playlistMu.
	queueMu    sync.Mutex
	playlistMu sync.Mutex
}

func NewService(repo StateRepository, pub Publisher, yt *YouTubeClient, cfg *Config, logger *log.Logger) *ServiceImpl {
	return &ServiceImpl{
		repo:               repo,
		pub:                pub,
		yt:                 yt,
		logger:             logger,
		oneVotePerListener: cfg.Votes.OneVotePerListener,
		placement:          cfg.Promote.Placement,
	}
}

// SetPositioner wires the playback engine in after construction; both
// sides need the other, so main connects them.
func (s *ServiceImpl) SetPositioner(p Positioner) {
	s.positioner = p
}

func (s *ServiceImpl) Playlist() ([]Song, error) {
	return s.repo.Playlist()
}

func (s *ServiceImpl) Suggestions() ([]Suggestion, error) {
	return s.repo.Suggestions()
}

// Suggest validates input as a video id or URL, resolves a missing
// title, and inserts the suggestion with one vote from the suggester.
// The metadata lookup runs before the queue lock is taken.
func (s *ServiceImpl) Suggest(input, title, voterID string) (*Suggestion, error) {
	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = s.lookupTitle(videoID)
	}

	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	suggestion, err := s.repo.InsertSuggestion(Song{VideoID: videoID, Title: title}, voterID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("suggestion added", "video_id", videoID, "title", title)
	s.publishSuggestions()
	return suggestion, nil
}

func (s *ServiceImpl) lookupTitle(videoID string) string {
	if s.yt == nil {
		return videoID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	title, _, err := s.yt.VideoDetails(ctx, videoID)
	if err != nil {
		s.logger.Warn("video lookup failed", "video_id", videoID, "err", err)
		return videoID
	}
	return title
}

func (s *ServiceImpl) Vote(suggestionID, voterID string) (*Suggestion, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	suggestion, err := s.repo.IncrementVote(suggestionID, voterID, s.oneVotePerListener)
	if err != nil {
		return nil, err
	}
	s.publishSuggestions()
	return suggestion, nil
}

// ReorderPlaylist replaces the playback order. The new order must be a
// permutation of the current playlist; extra or missing songs are
// rejected, never silently dropped.
func (s *ServiceImpl) ReorderPlaylist(songs []Song) error {
	s.playlistMu.Lock()
	defer s.playlistMu.Unlock()

	current, err := s.repo.Playlist()
	if err != nil {
		return err
	}
	if err := checkPermutation(current, songs); err != nil {
		return err
	}
	if err := s.repo.ReplacePlaylist(songs); err != nil {
		return err
	}
	s.publishPlaylist()
	return nil
}

// PromoteWinner moves the top-voted suggestion into the playlist and
// resets the whole queue. Promotion is a round reset, not a pop: every
// other suggestion is discarded too. Ties go to the earliest-inserted
// suggestion.
func (s *ServiceImpl) PromoteWinner() (string, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.playlistMu.Lock()
	defer s.playlistMu.Unlock()

	suggestions, err := s.repo.Suggestions()
	if err != nil {
		return "", err
	}
	if len(suggestions) == 0 {
		return "", ErrEmptyQueue
	}

	// suggestions come in insertion order, so a strict > keeps the
	// earliest among ties
	winner := suggestions[0]
	for _, cand := range suggestions[1:] {
		if cand.Votes > winner.Votes {
			winner = cand
		}
	}

	playlist, err := s.repo.Playlist()
	if err != nil {
		return "", err
	}
	for _, song := range playlist {
		if song.VideoID == winner.VideoID {
			if err := s.repo.ClearSuggestions(); err != nil {
				return "", err
			}
			s.publishSuggestions()
			s.logger.Info("winner already on playlist, queue cleared", "video_id", winner.VideoID)
			return fmt.Sprintf("'%s' is already in the playlist. Suggestions cleared.", winner.Title), nil
		}
	}

	at := appendToPlaylist
	if s.placement == PlacementInsertNext && s.positioner != nil {
		at = s.positioner.CurrentIndex() + 1
	}
	if err := s.repo.ClearSuggestionsAndAppend(Song{VideoID: winner.VideoID, Title: winner.Title}, at); err != nil {
		return "", err
	}

	s.logger.Info("promoted winner", "video_id", winner.VideoID, "votes", winner.Votes)
	s.publishPlaylist()
	s.publishSuggestions()
	return fmt.Sprintf("'%s' promoted to playlist!", winner.Title), nil
}

func (s *ServiceImpl) close() {
	s.repo.close()
}

func (s *ServiceImpl) publishPlaylist() {
	if s.pub == nil {
		return
	}
	if playlist, err := s.repo.Playlist(); err == nil {
		s.pub.Broadcast(Event{Type: EventPlaylistUpdated, Payload: playlist})
	}
}

func (s *ServiceImpl) publishSuggestions() {
	if s.pub == nil {
		return
	}
	if suggestions, err := s.repo.Suggestions(); err == nil {
		s.pub.Broadcast(Event{Type: EventSuggestionsUpdated, Payload: RankSuggestions(suggestions)})
	}
}

func checkPermutation(current, proposed []Song) error {
	if len(current) != len(proposed) {
		return fmt.Errorf("%w: playlist has %d songs, got %d", ErrInvalidInput, len(current), len(proposed))
	}
	counts := make(map[string]int, len(current))
	for _, song := range current {
		counts[song.VideoID]++
	}
	for _, song := range proposed {
		counts[song.VideoID]--
		if counts[song.VideoID] < 0 {
			return fmt.Errorf("%w: %s is not on the playlist", ErrInvalidInput, song.VideoID)
		}
	}
	// lengths match and nothing went negative, so nothing is missing
	return nil
}
