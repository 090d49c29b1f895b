package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	PlacementAppend     = "append"
	PlacementInsertNext = "insert_next"
)

// Config is the application configuration, loaded from a TOML file
// with a few environment overrides for container deployments.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	YouTube  YouTubeConfig  `toml:"youtube"`
	Votes    VotesConfig    `toml:"votes"`
	Promote  PromoteConfig  `toml:"promote"`
	Session  SessionConfig  `toml:"session"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// DatabaseConfig selects the state store backend by URL scheme:
// empty for in-memory, sqlite://file, or postgres://...
type DatabaseConfig struct {
	URL string `toml:"url"`
}

type YouTubeConfig struct {
	APIKey string `toml:"api_key"`
}

type VotesConfig struct {
	// OneVotePerListener rejects a repeat vote from the same listener
	// identity instead of counting it again.
	OneVotePerListener bool `toml:"one_vote_per_listener"`
}

type PromoteConfig struct {
	// Placement is where a promoted song lands: "append" or
	// "insert_next" (right after the song now playing).
	Placement string `toml:"placement"`
}

type SessionConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	TTLHours  int    `toml:"ttl_hours"`
}

func DefaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":3000"},
		Votes:   VotesConfig{OneVotePerListener: true},
		Promote: PromoteConfig{Placement: PlacementAppend},
		Session: SessionConfig{JWTSecret: "secret", TTLHours: 72},
	}
}

// LoadConfig reads the TOML file at path over the defaults. A missing
// file is fine, env overrides still apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if v := os.Getenv("DB_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.YouTube.APIKey = v
	}
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Session.JWTSecret = v
	}

	if cfg.Promote.Placement != PlacementAppend && cfg.Promote.Placement != PlacementInsertNext {
		return nil, fmt.Errorf("invalid promote.placement %q", cfg.Promote.Placement)
	}
	return cfg, nil
}
