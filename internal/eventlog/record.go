package eventlog

import (
	"encoding/json"
	"time"
)

// Type classifies audit records
type Type uint8

const (
	TypeUnknown Type = iota
	TypeCombatStart
	TypePhase
	TypeMiniGameResult
	TypeDamageDealt
	TypeDamageTaken
	TypeHeal
	TypeReward
	TypeCombatEnd
)

// SchemaVersion is bumped when payload layouts change
const SchemaVersion uint8 = 1

// Record is one line of the JSONL audit log
type Record struct {
	Version   uint8           `json:"version"`
	Type      Type            `json:"type"`
	Timestamp int64           `json:"timestamp"` // unix nano
	Sequence  uint64          `json:"sequence"`
	SessionID string          `json:"sessionId"` // rate limited per session
	Round     int             `json:"round"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (t Type) String() string {
	switch t {
	case TypeCombatStart:
		return "combat_start"
	case TypePhase:
		return "phase"
	case TypeMiniGameResult:
		return "minigame_result"
	case TypeDamageDealt:
		return "damage_dealt"
	case TypeDamageTaken:
		return "damage_taken"
	case TypeHeal:
		return "heal"
	case TypeReward:
		return "reward"
	case TypeCombatEnd:
		return "combat_end"
	default:
		return "unknown"
	}
}

// MarshalJSON writes the type by name
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// CombatStartPayload describes a new combat
type CombatStartPayload struct {
	EnemyID     string `json:"enemyId"`
	EnemyHP     int    `json:"enemyHp"`
	PlayerHP    int    `json:"playerHp"`
	RandomEnemy bool   `json:"random"`
}

// PhasePayload records a phase entry
type PhasePayload struct {
	Phase string `json:"phase"`
	Seq   uint64 `json:"seq"`
}

// MiniGamePayload records a graded mini-game
type MiniGamePayload struct {
	Game      string `json:"game"`
	Tier      string `json:"tier"`
	Weakness  bool   `json:"weakness"`
	ElapsedMs int64  `json:"elapsedMs,omitempty"`
}

// DamagePayload records damage or healing
type DamagePayload struct {
	Amount   int `json:"amount"`
	TargetHP int `json:"targetHp"`
}

// RewardPayload records a victory grant
type RewardPayload struct {
	EnemyID string `json:"enemyId"`
	Yen     int    `json:"yen"`
	XP      int    `json:"xp"`
	Level   int    `json:"level"`
}

// CombatEndPayload records how a combat ended
type CombatEndPayload struct {
	Outcome string `json:"outcome"` // victory, defeat, abort
	Rounds  int    `json:"rounds"`
}

// NewRecord creates a record stamped with the current time
func NewRecord(t Type, sessionID string, round int, payload interface{}) Record {
	return Record{
		Version:   SchemaVersion,
		Type:      t,
		Timestamp: time.Now().UnixNano(),
		SessionID: sessionID,
		Round:     round,
		Payload:   encodePayload(payload),
	}
}

func encodePayload(payload interface{}) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
