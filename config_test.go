package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)
		assert.Equal(t, ":3000", cfg.Server.Addr)
		assert.True(t, cfg.Votes.OneVotePerListener)
		assert.Equal(t, PlacementAppend, cfg.Promote.Placement)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":8080"

[votes]
one_vote_per_listener = false

[promote]
placement = "insert_next"
`), 0644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.False(t, cfg.Votes.OneVotePerListener)
		assert.Equal(t, PlacementInsertNext, cfg.Promote.Placement)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("DB_URL", "sqlite://radio.db")
		t.Setenv("ADDR", ":9999")

		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)
		assert.Equal(t, "sqlite://radio.db", cfg.Database.URL)
		assert.Equal(t, ":9999", cfg.Server.Addr)
	})

	t.Run("bad placement rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[promote]
placement = "somewhere"
`), 0644))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("malformed toml rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(`[server`), 0644))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}
