// Package config provides centralized configuration management.
//
// Values are resolved in three layers: compiled defaults, an optional TOML
// file named by CONFIG_PATH, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"kotoba-quest/internal/combat"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	TickRate       int      `toml:"tick_rate"`      // encounter ticks per second
	CORSOrigins    []string `toml:"cors_origins"`   // allowed browser origins
	SessionSecret  string   `toml:"session_secret"` // HMAC key for session cookies
	RequestsPerSec float64  `toml:"requests_per_sec"`
	Burst          int      `toml:"burst"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		TickRate:       30,
		CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
		RequestsPerSec: 20,
		Burst:          40,
	}
}

// ServerFromEnv applies environment overrides to cfg.
func ServerFromEnv(cfg ServerConfig) ServerConfig {
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.SessionSecret = secret
	}
	if rps := getEnvFloat("RATE_LIMIT_RPS", 0); rps > 0 {
		cfg.RequestsPerSec = rps
	}
	return cfg
}

// =============================================================================
// COMBAT CONFIGURATION
// =============================================================================

// CombatConfig holds gameplay defaults for new players.
type CombatConfig struct {
	Difficulty    string         `toml:"difficulty"` // off, easy, medium, hard
	PlayerLevel   int            `toml:"player_level"`
	StartingYen   int            `toml:"starting_yen"`
	StartingItems map[string]int `toml:"starting_items"` // item id -> count
}

// DefaultCombat returns the default combat configuration.
func DefaultCombat() CombatConfig {
	return CombatConfig{
		Difficulty:  string(combat.DifficultyMedium),
		PlayerLevel: 1,
		StartingYen: 0,
		StartingItems: map[string]int{
			"tea":     3,
			"onigiri": 1,
		},
	}
}

// CombatFromEnv applies environment overrides to cfg.
func CombatFromEnv(cfg CombatConfig) CombatConfig {
	if d := os.Getenv("DIFFICULTY"); d != "" {
		cfg.Difficulty = d
	}
	if lvl := getEnvInt("PLAYER_LEVEL", 0); lvl > 0 {
		cfg.PlayerLevel = lvl
	}
	return cfg
}

// =============================================================================
// LOGGING CONFIGURATION
// =============================================================================

// LoggingConfig selects the log level and encoder.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// DefaultLogging returns the default logging configuration.
func DefaultLogging() LoggingConfig {
	return LoggingConfig{Level: "info", Format: "console"}
}

// LoggingFromEnv applies environment overrides to cfg.
func LoggingFromEnv(cfg LoggingConfig) LoggingConfig {
	if l := os.Getenv("LOG_LEVEL"); l != "" {
		cfg.Level = l
	}
	if f := os.Getenv("LOG_FORMAT"); f != "" {
		cfg.Format = f
	}
	return cfg
}

// =============================================================================
// STORAGE & DEBUG CONFIGURATION
// =============================================================================

// StorageConfig holds file locations.
type StorageConfig struct {
	EventLogPath string `toml:"event_log_path"` // empty disables the JSONL file
	ContentDir   string `toml:"content_dir"`    // overrides for the embedded YAML
}

// DefaultStorage returns the default storage configuration.
func DefaultStorage() StorageConfig {
	return StorageConfig{EventLogPath: "combat_events.jsonl"}
}

// StorageFromEnv applies environment overrides to cfg.
func StorageFromEnv(cfg StorageConfig) StorageConfig {
	if p, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = p
	}
	if d := os.Getenv("CONTENT_DIR"); d != "" {
		cfg.ContentDir = d
	}
	return cfg
}

// DebugConfig holds the pprof/metrics server settings.
type DebugConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"` // keep on localhost
}

// DefaultDebug returns the default debug configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{Enabled: true, Addr: "127.0.0.1:6060"}
}

// DebugFromEnv applies environment overrides to cfg.
func DebugFromEnv(cfg DebugConfig) DebugConfig {
	if a := os.Getenv("DEBUG_ADDR"); a != "" {
		cfg.Addr = a
	}
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	return cfg
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig sizes the PNG frame endpoint.
type RenderConfig struct {
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	SpriteDir string `toml:"sprite_dir"` // <key>.png sprite strips; empty draws placeholders
	FontPath  string `toml:"font_path"`  // TTF; empty uses the built-in face
}

// DefaultRender returns the default render configuration.
func DefaultRender() RenderConfig {
	return RenderConfig{Width: 640, Height: 360}
}

// RenderFromEnv applies environment overrides to cfg.
func RenderFromEnv(cfg RenderConfig) RenderConfig {
	if d := os.Getenv("SPRITE_DIR"); d != "" {
		cfg.SpriteDir = d
	}
	if f := os.Getenv("FONT_PATH"); f != "" {
		cfg.FontPath = f
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server  ServerConfig  `toml:"server"`
	Combat  CombatConfig  `toml:"combat"`
	Logging LoggingConfig `toml:"logging"`
	Storage StorageConfig `toml:"storage"`
	Debug   DebugConfig   `toml:"debug"`
	Render  RenderConfig  `toml:"render"`
}

// Defaults returns the compiled-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Server:  DefaultServer(),
		Combat:  DefaultCombat(),
		Logging: DefaultLogging(),
		Storage: DefaultStorage(),
		Debug:   DefaultDebug(),
		Render:  DefaultRender(),
	}
}

// Load returns the complete configuration: defaults, then the TOML file
// named by CONFIG_PATH if set, then environment overrides.
func Load() (AppConfig, error) {
	return LoadFile(os.Getenv("CONFIG_PATH"))
}

// LoadFile is Load with an explicit TOML path. An empty path skips the file.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.Server = ServerFromEnv(cfg.Server)
	cfg.Combat = CombatFromEnv(cfg.Combat)
	cfg.Logging = LoggingFromEnv(cfg.Logging)
	cfg.Storage = StorageFromEnv(cfg.Storage)
	cfg.Debug = DebugFromEnv(cfg.Debug)
	cfg.Render = RenderFromEnv(cfg.Render)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Server.TickRate <= 0 || c.Server.TickRate > 240 {
		return fmt.Errorf("config: invalid tick rate %d", c.Server.TickRate)
	}
	if _, err := combat.ParseDifficulty(c.Combat.Difficulty); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("config: invalid frame size %dx%d", c.Render.Width, c.Render.Height)
	}
	if c.Combat.PlayerLevel < 1 {
		return fmt.Errorf("config: invalid player level %d", c.Combat.PlayerLevel)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
