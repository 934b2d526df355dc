package minigame

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/content"
)

// DifficultySource provides the current timer difficulty
type DifficultySource interface {
	Difficulty() combat.Difficulty
}

// FixedDifficulty is a DifficultySource that never changes
type FixedDifficulty combat.Difficulty

// Difficulty returns d
func (d FixedDifficulty) Difficulty() combat.Difficulty { return combat.Difficulty(d) }

// Factory creates games. The difficulty is read at every New call so
// settings changes apply to the next game.
type Factory struct {
	mu       sync.Mutex
	settings DifficultySource
	rng      Shuffler
	clock    Clock
	log      *zap.Logger
}

// NewFactory creates a factory. A nil rng is seeded from the clock.
func NewFactory(settings DifficultySource, rng Shuffler, clock Clock, logger *zap.Logger) *Factory {
	if settings == nil {
		settings = FixedDifficulty(combat.DifficultyMedium)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{settings: settings, rng: rng, clock: clock, log: logger}
}

// New builds a game of kind from the learned words, falling back to the
// full vocabulary. It returns ErrPoolTooSmall when neither pool is large enough.
func (f *Factory) New(kind combat.MiniGameKind, learned, all []content.Word, report Reporter) (Game, error) {
	pool, ok := SelectPool(kind, learned, all)
	if !ok {
		f.log.Warn("vocabulary pool too small",
			zap.String("game", string(kind)),
			zap.Int("learned", len(learned)),
			zap.Int("all", len(all)),
			zap.Int("need", MinPool(kind)))
		return nil, fmt.Errorf("%w for %s", ErrPoolTooSmall, kind)
	}

	diff := f.settings.Difficulty()
	cfg := combat.GetGameTimer(kind, diff)

	// *rand.Rand is not safe for concurrent use
	f.mu.Lock()
	defer f.mu.Unlock()

	var g Game
	switch kind {
	case combat.MiniGameQuiz:
		g = newQuiz(pool, f.rng, cfg, f.clock, report)
	case combat.MiniGameMatching:
		g = newMatching(pool, f.rng, cfg, f.clock, report)
	case combat.MiniGameUnscramble:
		g = newUnscramble(pool, f.rng, cfg, f.clock, report)
	default:
		return nil, fmt.Errorf("%w: %q", combat.ErrInvalidMiniGame, kind)
	}
	f.log.Debug("mini-game created",
		zap.String("game", string(kind)),
		zap.String("difficulty", string(diff)),
		zap.Int("totalMs", cfg.TotalMs),
		zap.Int("pool", len(pool)))
	return g, nil
}
