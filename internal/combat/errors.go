package combat

import "errors"

var (
	// ErrInvalidPhase is returned when an operation is called outside its phase
	ErrInvalidPhase = errors.New("combat: operation not allowed in current phase")
	// ErrStaleToken is returned for tokens of a phase instance that has ended or was already resolved
	ErrStaleToken = errors.New("combat: stale resolution token")
	// ErrImpactPending is returned when an enemy turn is resolved before its strike landed
	ErrImpactPending = errors.New("combat: enemy strike has not landed")
	// ErrNoCombat is returned when no combat is active
	ErrNoCombat = errors.New("combat: no active combat")
	// ErrInvalidEnemy is returned for enemy templates that cannot start a combat
	ErrInvalidEnemy = errors.New("combat: invalid enemy")
	// ErrInvalidTier is returned for unknown tiers
	ErrInvalidTier = errors.New("combat: invalid tier")
	// ErrInvalidMiniGame is returned for unknown mini-game kinds
	ErrInvalidMiniGame = errors.New("combat: invalid mini-game")
)
