package encounter

import (
	"time"

	"kotoba-quest/internal/combat"
)

// Metrics receives gameplay counters. The api package backs it with Prometheus.
type Metrics interface {
	CombatStarted(enemyID string, random bool)
	CombatEnded(outcome string)
	MiniGameGraded(kind combat.MiniGameKind, tier combat.Tier, weakPoint bool)
	Damage(direction string, amount int)
	ArenaTick(d time.Duration, encounters int)
}

// Combat outcomes
const (
	OutcomeVictory = "victory"
	OutcomeDefeat  = "defeat"
	OutcomeAbort   = "abort"
	OutcomeRetry   = "retry"
)

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) CombatStarted(string, bool)                            {}
func (NopMetrics) CombatEnded(string)                                    {}
func (NopMetrics) MiniGameGraded(combat.MiniGameKind, combat.Tier, bool) {}
func (NopMetrics) Damage(string, int)                                    {}
func (NopMetrics) ArenaTick(time.Duration, int)                          {}
