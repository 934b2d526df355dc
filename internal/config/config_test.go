package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotoba-quest/internal/combat"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "medium", cfg.Combat.Difficulty)
	assert.Equal(t, 3, cfg.Combat.StartingItems["tea"])
}

func TestLoadFileOverlaysTOMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kotoba.toml")
	data := `
[server]
port = 8080
tick_rate = 20

[combat]
difficulty = "hard"
player_level = 4

[combat.starting_items]
bento = 2

[logging]
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Server.TickRate)
	assert.Equal(t, "hard", cfg.Combat.Difficulty)
	assert.Equal(t, 4, cfg.Combat.PlayerLevel)
	assert.Equal(t, 2, cfg.Combat.StartingItems["bento"])
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[server\nport ="), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}

func TestEnvValidation(t *testing.T) {
	t.Setenv("DIFFICULTY", "nightmare")
	_, err := LoadFile("")
	assert.Error(t, err)
}

func TestEventLogPathCanBeDisabled(t *testing.T) {
	t.Setenv("EVENT_LOG_PATH", "")
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Storage.EventLogPath)
}

func TestSettings(t *testing.T) {
	s := NewSettings(combat.DifficultyEasy)
	assert.Equal(t, combat.DifficultyEasy, s.Difficulty())

	d, err := s.SetDifficulty("OFF")
	require.NoError(t, err)
	assert.Equal(t, combat.DifficultyOff, d)
	assert.Equal(t, combat.DifficultyOff, s.Difficulty())

	_, err = s.SetDifficulty("impossible")
	assert.Error(t, err)
	assert.Equal(t, combat.DifficultyOff, s.Difficulty())
}
