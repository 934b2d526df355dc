package minigame

import (
	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/content"
)

// Minimum pool sizes per game
const (
	QuizChoices   = 4
	MaxPairs      = 4
	MinPairs      = 2
	MinUnscramble = 1
)

// MinPool returns the fewest words a game of kind needs
func MinPool(kind combat.MiniGameKind) int {
	switch kind {
	case combat.MiniGameQuiz:
		return QuizChoices
	case combat.MiniGameMatching:
		return MinPairs
	default:
		return MinUnscramble
	}
}

// SelectPool prefers the learned words and falls back to the full vocabulary
func SelectPool(kind combat.MiniGameKind, learned, all []content.Word) ([]content.Word, bool) {
	need := MinPool(kind)
	if len(learned) >= need {
		return learned, true
	}
	if len(all) >= need {
		return all, true
	}
	return nil, false
}

// Shuffler is the randomness games draw from. *math/rand.Rand satisfies it.
type Shuffler interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// sample returns n distinct words from pool in random order
func sample(rng Shuffler, pool []content.Word, n int) []content.Word {
	idx := make([]int, len(pool))
	for i := range idx {
		idx[i] = i
	}
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]content.Word, n)
	for i := 0; i < n; i++ {
		out[i] = pool[idx[i]]
	}
	return out
}
