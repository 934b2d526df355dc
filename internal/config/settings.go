package config

import (
	"sync/atomic"

	"kotoba-quest/internal/combat"
)

// Settings holds values players can change at runtime.
// Mini-games read the difficulty each time one starts.
type Settings struct {
	difficulty atomic.Value // combat.Difficulty
}

// NewSettings creates settings starting at d
func NewSettings(d combat.Difficulty) *Settings {
	s := &Settings{}
	s.difficulty.Store(d)
	return s
}

// Difficulty returns the current difficulty
func (s *Settings) Difficulty() combat.Difficulty {
	return s.difficulty.Load().(combat.Difficulty)
}

// SetDifficulty parses and stores a difficulty
func (s *Settings) SetDifficulty(name string) (combat.Difficulty, error) {
	d, err := combat.ParseDifficulty(name)
	if err != nil {
		return "", err
	}
	s.difficulty.Store(d)
	return d, nil
}
