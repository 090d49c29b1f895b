package main

import (
	"net/url"
	"os"

	"github.com/charmbracelet/log"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.toml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		logger.Fatal("config load failed", "err", err)
	}

	var repo StateRepository = NewMemoryRepository()
	if cfg.Database.URL != "" {
		u, err := url.Parse(cfg.Database.URL)
		if err != nil {
			logger.Fatal("invalid database url", "err", err)
		}
		switch u.Scheme {
		case "sqlite":
			repo, err = NewSQLiteRepository(u.Hostname() + u.Path)
		case "postgres":
			repo, err = NewPostgresRepository(cfg.Database.URL)
		default:
			logger.Fatal("unsupported database scheme", "scheme", u.Scheme)
		}
		if err != nil {
			logger.Fatal("database setup failed", "err", err)
		}
	}
	logger.Info("state store ready", "url", cfg.Database.URL)

	var ytClient *YouTubeClient
	if cfg.YouTube.APIKey != "" {
		ytClient = NewYouTubeClient(cfg.YouTube.APIKey)
	} else {
		logger.Warn("YOUTUBE_API_KEY not set, search and metadata lookups disabled")
	}

	svc := NewService(repo, nil, ytClient, cfg, logger)
	defer svc.close()

	radioEngine := NewRadio(repo, nil, ytClient, logger)
	svc.SetPositioner(radioEngine)

	hub := NewHub(func() []Event {
		events := make([]Event, 0, 3)
		if playlist, err := svc.Playlist(); err == nil {
			events = append(events, Event{Type: EventPlaylistUpdated, Payload: playlist})
		}
		if suggestions, err := svc.Suggestions(); err == nil {
			events = append(events, Event{Type: EventSuggestionsUpdated, Payload: RankSuggestions(suggestions)})
		}
		events = append(events, Event{Type: EventNowPlaying, Payload: radioEngine.NowPlaying()})
		return events
	}, logger)
	svc.pub = hub
	radioEngine.pub = hub

	go hub.Run()
	go radioEngine.Start()
	defer radioEngine.Shutdown()

	echoRouter := NewHTTPRouter(svc, hub, radioEngine, ytClient, cfg)
	logger.Info("starting server", "addr", cfg.Server.Addr)
	if err := echoRouter.Start(cfg.Server.Addr); err != nil {
		logger.Fatal("server stopped", "err", err)
	}
}
