package animation

// Pose is the sprite row an actor shows
type Pose string

const (
	PoseIdle     Pose = "idle"
	PoseAttack   Pose = "attack"
	PoseHurt     Pose = "hurt"
	PoseJump     Pose = "jump"
	PoseCollapse Pose = "collapse"
	PoseDown     Pose = "down"
)

// Targets for popups
const (
	TargetPlayer = "player"
	TargetEnemy  = "enemy"
)

// Actor is the presentation state of one combatant
type Actor struct {
	Sprite  string  `json:"sprite"`
	Pose    Pose    `json:"pose"`
	Frame   int     `json:"frame"`
	OffsetX float64 `json:"offsetX"`
}

// Popup is a floating damage or heal number
type Popup struct {
	Target    string `json:"target"`
	Amount    int    `json:"amount"`
	Miss      bool   `json:"miss,omitempty"`
	Heal      bool   `json:"heal,omitempty"`
	Weak      bool   `json:"weak,omitempty"`
	TicksLeft int    `json:"-"`
}

// State is the presentation-only view of a combat. It is derived from the
// phase and the latest damage values and never feeds back into combat.
type State struct {
	Player   Actor   `json:"player"`
	Enemy    Actor   `json:"enemy"`
	Flash    bool    `json:"flash"`
	Shake    bool    `json:"shake"`
	TrueForm bool    `json:"trueForm"`
	Busy     bool    `json:"busy"`
	Timeline string  `json:"timeline,omitempty"`
	Popups   []Popup `json:"popups"`
	Tick     uint64  `json:"tick"`
}

func idleState() State {
	return State{
		Player: Actor{Pose: PoseIdle},
		Enemy:  Actor{Pose: PoseIdle},
		Popups: []Popup{},
	}
}
