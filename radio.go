// this file deals with the playback state of the system
package main

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const defaultSongDurationSec = 180

// Radio walks the playlist in order and tells every client what is
// playing right now. It holds each song for its duration (looked up
// from YouTube, with a fallback when unknown) and wraps around at the
// end. It only reads state; all writes go through the Service.
type Radio struct {
	repo   StateRepository
	pub    Publisher
	yt     *YouTubeClient
	logger *log.Logger

	mu        sync.Mutex
	playlist  []Song
	index     int
	playing   bool
	startedAt time.Time
	durations map[string]int64

	ticker *time.Ticker
	done   chan struct{}
}

func NewRadio(repo StateRepository, pub Publisher, yt *YouTubeClient, logger *log.Logger) *Radio {
	return &Radio{
		repo:      repo,
		pub:       pub,
		yt:        yt,
		logger:    logger,
		playlist:  make([]Song, 0),
		durations: make(map[string]int64),
		done:      make(chan struct{}),
	}
}

func (r *Radio) Start() {
	r.ticker = time.NewTicker(time.Second)
	for {
		select {
		case t := <-r.ticker.C:
			r.tick(t)
		case <-r.done:
			return
		}
	}
}

func (r *Radio) Shutdown() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
	close(r.done)
}

// CurrentIndex is the playlist position of the song now playing.
func (r *Radio) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

func (r *Radio) NowPlaying() NowPlaying {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(time.Now())
}

func (r *Radio) tick(now time.Time) {
	playlist, err := r.repo.Playlist()
	if err != nil {
		r.logger.Error("playlist read failed", "err", err)
		return
	}

	r.mu.Lock()
	changed := r.adoptPlaylistLocked(playlist, now)

	if !r.playing {
		if changed {
			r.emitLocked(now)
		}
		r.mu.Unlock()
		return
	}

	if now.Sub(r.startedAt) >= time.Duration(r.durationLocked())*time.Second {
		r.index = (r.index + 1) % len(r.playlist)
		r.startedAt = now
		changed = true
		r.logger.Info("now playing changed", "video_id", r.playlist[r.index].VideoID)
	}
	if changed {
		r.emitLocked(now)
	}
	r.mu.Unlock()
}

// adoptPlaylistLocked reconciles a fresh playlist read with playback
// state. The current song keeps playing if it survived the change.
func (r *Radio) adoptPlaylistLocked(playlist []Song, now time.Time) bool {
	if samePlaylist(r.playlist, playlist) {
		return false
	}

	var current string
	if r.playing {
		current = r.playlist[r.index].VideoID
	}

	r.playlist = playlist
	if len(playlist) == 0 {
		r.playing = false
		r.index = 0
		return true
	}

	for i, song := range playlist {
		if song.VideoID == current {
			r.index = i
			return true
		}
	}
	r.index = 0
	r.playing = true
	r.startedAt = now
	return true
}

func (r *Radio) durationLocked() int64 {
	song := r.playlist[r.index]
	if d, ok := r.durations[song.VideoID]; ok {
		return d
	}

	d := int64(defaultSongDurationSec)
	if r.yt != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if _, fetched, err := r.yt.VideoDetails(ctx, song.VideoID); err == nil && fetched > 0 {
			d = fetched
		}
		cancel()
	}
	r.durations[song.VideoID] = d
	return d
}

func (r *Radio) snapshotLocked(now time.Time) NowPlaying {
	if !r.playing {
		return NowPlaying{State: "idle"}
	}
	song := r.playlist[r.index]
	return NowPlaying{
		State:       "playing",
		Song:        &song,
		PositionSec: int64(now.Sub(r.startedAt) / time.Second),
	}
}

func (r *Radio) emitLocked(now time.Time) {
	if r.pub == nil {
		return
	}
	r.pub.Broadcast(Event{Type: EventNowPlaying, Payload: r.snapshotLocked(now)})
}

func samePlaylist(a, b []Song) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].VideoID != b[i].VideoID {
			return false
		}
	}
	return true
}
