package main

import (
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is the default StateRepository: plain slices behind
// one mutex. Suggestions are held in insertion order.
type MemoryRepository struct {
	mu          sync.RWMutex
	playlist    []Song
	suggestions []memSuggestion
}

type memSuggestion struct {
	Suggestion
	voters map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		playlist:    make([]Song, 0),
		suggestions: make([]memSuggestion, 0),
	}
}

func (r *MemoryRepository) Playlist() ([]Song, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	songs := make([]Song, len(r.playlist))
	copy(songs, r.playlist)
	return songs, nil
}

func (r *MemoryRepository) Suggestions() ([]Suggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	suggestions := make([]Suggestion, len(r.suggestions))
	for i, s := range r.suggestions {
		suggestions[i] = s.copyOut()
	}
	return suggestions, nil
}

func (r *MemoryRepository) ReplacePlaylist(songs []Song) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.playlist = make([]Song, len(songs))
	copy(r.playlist, songs)
	return nil
}

func (r *MemoryRepository) InsertSuggestion(song Song, voterID string) (*Suggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.suggestions {
		if s.VideoID == song.VideoID {
			return nil, ErrDuplicateSuggestion
		}
	}

	s := memSuggestion{
		Suggestion: Suggestion{
			ID:      uuid.New().String(),
			VideoID: song.VideoID,
			Title:   song.Title,
			Votes:   1,
		},
		voters: map[string]struct{}{voterID: {}},
	}
	r.suggestions = append(r.suggestions, s)

	out := s.copyOut()
	return &out, nil
}

func (r *MemoryRepository) IncrementVote(suggestionID, voterID string, enforceSingleVote bool) (*Suggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.suggestions {
		s := &r.suggestions[i]
		if s.ID != suggestionID {
			continue
		}
		if _, voted := s.voters[voterID]; voted && enforceSingleVote {
			return nil, ErrAlreadyVoted
		}
		s.Votes++
		s.voters[voterID] = struct{}{}

		out := s.copyOut()
		return &out, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ClearSuggestionsAndAppend(song Song, at int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if at < 0 || at >= len(r.playlist) {
		r.playlist = append(r.playlist, song)
	} else {
		r.playlist = append(r.playlist[:at], append([]Song{song}, r.playlist[at:]...)...)
	}
	r.suggestions = r.suggestions[:0]
	return nil
}

func (r *MemoryRepository) ClearSuggestions() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.suggestions = r.suggestions[:0]
	return nil
}

func (r *MemoryRepository) close() {}

func (s *memSuggestion) copyOut() Suggestion {
	out := s.Suggestion
	out.Voters = make([]string, 0, len(s.voters))
	for v := range s.voters {
		out.Voters = append(out.Voters, v)
	}
	return out
}
