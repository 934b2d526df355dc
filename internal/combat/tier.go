package combat

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Tier is the speed grade of a completed mini-game
type Tier string

const (
	TierFast   Tier = "fast"
	TierMedium Tier = "medium"
	TierSlow   Tier = "slow"
	TierMiss   Tier = "miss"
)

// Valid reports whether t is one of the four tiers
func (t Tier) Valid() bool {
	switch t {
	case TierFast, TierMedium, TierSlow, TierMiss:
		return true
	}
	return false
}

// Label returns the combat log text for a tier
func (t Tier) Label() string {
	switch t {
	case TierFast:
		return "Lightning fast!"
	case TierMedium:
		return "Solid answer."
	case TierSlow:
		return "A bit slow..."
	default:
		return "Missed!"
	}
}

// TimerConfig holds the tier thresholds of a mini-game in milliseconds.
// A zero TotalMs means the game is untimed.
type TimerConfig struct {
	FastMs   int `json:"fastMs"`
	MediumMs int `json:"mediumMs"`
	SlowMs   int `json:"slowMs"`
	TotalMs  int `json:"totalMs"`
}

// Untimed reports whether the config disables the timer
func (c TimerConfig) Untimed() bool {
	return c.TotalMs == 0
}

// Total returns the time limit as a duration
func (c TimerConfig) Total() time.Duration {
	return time.Duration(c.TotalMs) * time.Millisecond
}

// Grade maps an elapsed time onto a tier. Boundaries are inclusive.
func Grade(elapsedMs int64, cfg TimerConfig) Tier {
	switch {
	case elapsedMs <= int64(cfg.FastMs):
		return TierFast
	case elapsedMs <= int64(cfg.MediumMs):
		return TierMedium
	case elapsedMs <= int64(cfg.SlowMs):
		return TierSlow
	default:
		return TierMiss
	}
}

// Difficulty scales mini-game timers
type Difficulty string

const (
	DifficultyOff    Difficulty = "off"
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty parses a difficulty name, case-insensitively
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DifficultyOff, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Multiplier returns the timer scale. Off returns 0.
func (d Difficulty) Multiplier() float64 {
	switch d {
	case DifficultyEasy:
		return 1.5
	case DifficultyHard:
		return 0.7
	case DifficultyOff:
		return 0
	default:
		return 1.0
	}
}

var baseTimers = map[MiniGameKind]TimerConfig{
	MiniGameQuiz:       {FastMs: 3000, MediumMs: 6000, SlowMs: 10000, TotalMs: 15000},
	MiniGameMatching:   {FastMs: 6000, MediumMs: 12000, SlowMs: 20000, TotalMs: 30000},
	MiniGameUnscramble: {FastMs: 5000, MediumMs: 10000, SlowMs: 15000, TotalMs: 20000},
}

// GetGameTimer returns the timer config for kind scaled by difficulty.
// Off and unknown kinds return the zero (untimed) config.
func GetGameTimer(kind MiniGameKind, d Difficulty) TimerConfig {
	base, ok := baseTimers[kind]
	if !ok || d == DifficultyOff {
		return TimerConfig{}
	}
	m := d.Multiplier()
	scale := func(ms int) int { return int(math.Round(float64(ms) * m)) }
	return TimerConfig{
		FastMs:   scale(base.FastMs),
		MediumMs: scale(base.MediumMs),
		SlowMs:   scale(base.SlowMs),
		TotalMs:  scale(base.TotalMs),
	}
}
