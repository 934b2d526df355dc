package combat

import "math"

const (
	BaseDamage        = 25
	WeaknessBonus     = 1.5
	DialogueChance    = 0.3 // chance an enemy speaks before striking
	EnemyVarianceMin  = 0.8
	EnemyVarianceSpan = 0.4
	BasePlayerHP      = 100
	PlayerHPPerLevel  = 10
)

// TierMultiplier returns the damage multiplier for a tier
func TierMultiplier(t Tier) float64 {
	switch t {
	case TierFast:
		return 1.5
	case TierMedium:
		return 1.0
	case TierSlow:
		return 0.5
	default:
		return 0
	}
}

// PlayerDamage computes the damage a completed mini-game deals
func PlayerDamage(t Tier, weaknessMatch bool) int {
	bonus := 1.0
	if weaknessMatch {
		bonus = WeaknessBonus
	}
	return int(math.Round(BaseDamage * TierMultiplier(t) * bonus))
}

// EnemyDamage applies a variance factor in [0.8, 1.2] to an enemy attack
func EnemyDamage(attack int, variance float64) int {
	if attack <= 0 {
		return 0
	}
	return int(math.Round(float64(attack) * variance))
}

// PlayerMaxHP returns the HP pool for a player level
func PlayerMaxHP(level int) int {
	if level < 1 {
		level = 1
	}
	return BasePlayerHP + PlayerHPPerLevel*(level-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
