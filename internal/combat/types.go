package combat

// Phase is one of the seven combat phases
type Phase string

const (
	PhaseIntro        Phase = "intro"
	PhaseActionSelect Phase = "action-select"
	PhaseMiniGame     Phase = "mini-game"
	PhasePlayerResult Phase = "player-result"
	PhaseEnemyTurn    Phase = "enemy-turn"
	PhaseVictory      Phase = "victory"
	PhaseDefeat       Phase = "defeat"
)

// MiniGameKind identifies a vocabulary mini-game
type MiniGameKind string

const (
	MiniGameQuiz       MiniGameKind = "quiz"
	MiniGameMatching   MiniGameKind = "matching"
	MiniGameUnscramble MiniGameKind = "unscramble"
)

// MiniGameKinds lists every kind in menu order. The weakness is rolled from this list.
var MiniGameKinds = []MiniGameKind{MiniGameQuiz, MiniGameMatching, MiniGameUnscramble}

// Valid reports whether k is a known mini-game kind
func (k MiniGameKind) Valid() bool {
	switch k {
	case MiniGameQuiz, MiniGameMatching, MiniGameUnscramble:
		return true
	}
	return false
}

// Sprites holds the sprite sheet keys for an enemy
type Sprites struct {
	Idle   string `json:"idle" yaml:"idle"`
	Attack string `json:"attack" yaml:"attack"`
	Hurt   string `json:"hurt" yaml:"hurt"`
}

// Enemy is an immutable enemy template
type Enemy struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	NameJa         string   `json:"nameJa" yaml:"nameJa"`
	Sprites        Sprites  `json:"sprites" yaml:"sprites"`
	HP             int      `json:"hp" yaml:"hp"`
	Attack         int      `json:"attack" yaml:"attack"`
	YenReward      int      `json:"yenReward" yaml:"yenReward"`
	XPReward       int      `json:"xpReward" yaml:"xpReward"`
	BattleDialogue []string `json:"battleDialogue,omitempty" yaml:"battleDialogue"`
	TrueFormSprite string   `json:"trueFormSprite,omitempty" yaml:"trueFormSprite"` // shown after defeat
}

// LogKind classifies combat log lines for the client
type LogKind string

const (
	LogSystem   LogKind = "system"
	LogPlayer   LogKind = "player"
	LogEnemy    LogKind = "enemy"
	LogDialogue LogKind = "dialogue"
	LogItem     LogKind = "item"
)

// LogEntry is one line of the combat log
type LogEntry struct {
	Round int     `json:"round"`
	Kind  LogKind `json:"kind"`
	Text  string  `json:"text"`
}

// Session is the mutable state of one combat
type Session struct {
	IsActive          bool
	Enemy             *Enemy
	EnemyHP           int
	EnemyMaxHP        int
	PlayerHP          int
	PlayerMaxHP       int
	Phase             Phase
	CurrentRound      int
	SelectedMiniGame  MiniGameKind
	CurrentWeakness   MiniGameKind
	LastTier          Tier
	LastDamageDealt   int
	LastDamageTaken   int
	IsRandomEncounter bool
	Log               []LogEntry
}

// Snapshot is a read-only copy of a session.
// CurrentWeakness is not serialized; clients only see WeakPoint markers.
type Snapshot struct {
	IsActive          bool         `json:"isActive"`
	Enemy             *Enemy       `json:"enemy,omitempty"`
	EnemyHP           int          `json:"enemyHp"`
	EnemyMaxHP        int          `json:"enemyMaxHp"`
	PlayerHP          int          `json:"playerHp"`
	PlayerMaxHP       int          `json:"playerMaxHp"`
	Phase             Phase        `json:"phase"`
	CurrentRound      int          `json:"currentRound"`
	SelectedMiniGame  MiniGameKind `json:"selectedMiniGame,omitempty"`
	CurrentWeakness   MiniGameKind `json:"-"`
	LastTier          Tier         `json:"lastTier,omitempty"`
	LastDamageDealt   int          `json:"lastDamageDealt"`
	LastDamageTaken   int          `json:"lastDamageTaken"`
	IsRandomEncounter bool         `json:"isRandomEncounter"`
	Log               []LogEntry   `json:"log"`
	Seq               uint64       `json:"seq"` // phase instance counter
}

// WeakPoint reports whether kind is the current weakness
func (s Snapshot) WeakPoint(kind MiniGameKind) bool {
	return s.IsActive && s.CurrentWeakness != "" && s.CurrentWeakness == kind
}

func (s *Session) snapshot(seq uint64) Snapshot {
	snap := Snapshot{
		IsActive:          s.IsActive,
		EnemyHP:           s.EnemyHP,
		EnemyMaxHP:        s.EnemyMaxHP,
		PlayerHP:          s.PlayerHP,
		PlayerMaxHP:       s.PlayerMaxHP,
		Phase:             s.Phase,
		CurrentRound:      s.CurrentRound,
		SelectedMiniGame:  s.SelectedMiniGame,
		CurrentWeakness:   s.CurrentWeakness,
		LastTier:          s.LastTier,
		LastDamageDealt:   s.LastDamageDealt,
		LastDamageTaken:   s.LastDamageTaken,
		IsRandomEncounter: s.IsRandomEncounter,
		Log:               make([]LogEntry, len(s.Log)),
		Seq:               seq,
	}
	copy(snap.Log, s.Log)
	if s.Enemy != nil {
		e := *s.Enemy
		e.BattleDialogue = append([]string(nil), s.Enemy.BattleDialogue...)
		snap.Enemy = &e
	}
	return snap
}
