package combat

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// FSM event names
const (
	evIntroDone = "intro_done"
	evSelect    = "select"
	evComplete  = "complete"
	evItem      = "item"
	evWin       = "win"
	evCounter   = "counter"
	evDefeat    = "defeat"
	evNextRound = "next_round"
)

var transitions = fsm.Events{
	{Name: evIntroDone, Src: []string{string(PhaseIntro)}, Dst: string(PhaseActionSelect)},
	{Name: evSelect, Src: []string{string(PhaseActionSelect)}, Dst: string(PhaseMiniGame)},
	{Name: evComplete, Src: []string{string(PhaseMiniGame)}, Dst: string(PhasePlayerResult)},
	{Name: evItem, Src: []string{string(PhaseActionSelect)}, Dst: string(PhaseEnemyTurn)},
	{Name: evWin, Src: []string{string(PhasePlayerResult)}, Dst: string(PhaseVictory)},
	{Name: evCounter, Src: []string{string(PhasePlayerResult)}, Dst: string(PhaseEnemyTurn)},
	{Name: evDefeat, Src: []string{string(PhaseEnemyTurn)}, Dst: string(PhaseDefeat)},
	{Name: evNextRound, Src: []string{string(PhaseEnemyTurn)}, Dst: string(PhaseActionSelect)},
}

// Options configures a Controller
type Options struct {
	Rand        Rand
	Logger      *zap.Logger
	PlayerLevel func() int // read at every StartCombat; nil means level 1
}

// StrikeResult is the outcome of one enemy attack
type StrikeResult struct {
	Damage   int  `json:"damage"`
	Defeated bool `json:"defeated"`
}

// Controller owns one combat session and enforces the phase machine.
// All exported methods are safe for concurrent use. Subscribers are
// invoked after the internal lock is released.
type Controller struct {
	mu      sync.Mutex
	machine *fsm.FSM
	session Session
	rng     Rand
	log     *zap.Logger
	level   func() int

	// Phase instance tracking for tokens
	seq      uint64
	struck   bool
	resolved bool

	subs    map[int]func(Event)
	nextSub int
	pending []Event
}

// NewController creates an idle controller
func NewController(opts Options) *Controller {
	c := &Controller{
		rng:   opts.Rand,
		log:   opts.Logger,
		level: opts.PlayerLevel,
		subs:  make(map[int]func(Event)),
	}
	if c.rng == nil {
		c.rng = NewRand(1)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.session.Phase = PhaseIntro
	c.machine = fsm.NewFSM(string(PhaseIntro), transitions, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			c.entered(Phase(e.Dst))
		},
	})
	return c
}

// Subscribe registers fn for combat events and returns a cancel func
func (c *Controller) Subscribe(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Snapshot returns a copy of the current session
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.snapshot(c.seq)
}

// Phase returns the current phase
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Phase
}

// Active reports whether a combat is running
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.IsActive
}

// StartCombat resets the session and enters the intro phase
func (c *Controller) StartCombat(enemy Enemy, isRandomEncounter bool) error {
	return c.apply(func() error {
		if enemy.HP <= 0 {
			return fmt.Errorf("%w: %q has no hp", ErrInvalidEnemy, enemy.ID)
		}
		level := 1
		if c.level != nil {
			level = c.level()
		}
		maxHP := PlayerMaxHP(level)
		tmpl := enemy
		tmpl.BattleDialogue = append([]string(nil), enemy.BattleDialogue...)

		c.session = Session{
			IsActive:          true,
			Enemy:             &tmpl,
			EnemyHP:           enemy.HP,
			EnemyMaxHP:        enemy.HP,
			PlayerHP:          maxHP,
			PlayerMaxHP:       maxHP,
			Phase:             PhaseIntro,
			CurrentRound:      1,
			IsRandomEncounter: isRandomEncounter,
		}
		c.session.CurrentWeakness = c.rollWeakness()
		c.appendLog(LogSystem, fmt.Sprintf("%s appeared!", enemy.Name))

		c.machine.SetState(string(PhaseIntro))
		c.emit(EventStarted, 0)
		c.entered(PhaseIntro)

		c.log.Info("combat started",
			zap.String("enemy", enemy.ID),
			zap.Bool("random", isRandomEncounter),
			zap.Int("playerHp", maxHP))
		return nil
	})
}

// FinishIntro moves from intro to action-select
func (c *Controller) FinishIntro() error {
	return c.apply(func() error {
		if err := c.guard(evIntroDone); err != nil {
			return err
		}
		return c.fire(evIntroDone)
	})
}

// SelectMiniGame records the chosen mini-game and enters the mini-game phase
func (c *Controller) SelectMiniGame(kind MiniGameKind) error {
	return c.apply(func() error {
		if err := c.guard(evSelect); err != nil {
			return err
		}
		if !kind.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidMiniGame, kind)
		}
		c.session.SelectedMiniGame = kind
		return c.fire(evSelect)
	})
}

// CompleteMiniGame applies the player's attack for tier and enters player-result
func (c *Controller) CompleteMiniGame(tier Tier) error {
	return c.apply(func() error {
		if err := c.guard(evComplete); err != nil {
			return err
		}
		if !tier.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidTier, tier)
		}
		s := &c.session
		weak := s.SelectedMiniGame == s.CurrentWeakness
		dmg := PlayerDamage(tier, weak)
		s.EnemyHP = clamp(s.EnemyHP-dmg, 0, s.EnemyMaxHP)
		s.LastTier = tier
		s.LastDamageDealt = dmg

		c.appendLog(LogPlayer, tier.Label())
		switch {
		case dmg == 0:
			c.appendLog(LogPlayer, "Your attack missed.")
		case weak:
			c.appendLog(LogPlayer, fmt.Sprintf("Weak point! You dealt %d damage to %s.", dmg, s.Enemy.Name))
		default:
			c.appendLog(LogPlayer, fmt.Sprintf("You dealt %d damage to %s.", dmg, s.Enemy.Name))
		}
		if s.EnemyHP == 0 {
			c.appendLog(LogSystem, fmt.Sprintf("%s was defeated!", s.Enemy.Name))
		}
		c.emit(EventDamageDealt, dmg)
		return c.fire(evComplete)
	})
}

// UseItem heals the player and passes the turn to the enemy
func (c *Controller) UseItem(heal int, name string) error {
	return c.apply(func() error {
		if err := c.guard(evItem); err != nil {
			return err
		}
		s := &c.session
		if heal < 0 {
			heal = 0
		}
		healed := heal
		if room := s.PlayerMaxHP - s.PlayerHP; healed > room {
			healed = room
		}
		s.PlayerHP += healed
		c.appendLog(LogItem, fmt.Sprintf("Used %s and recovered %d HP.", name, healed))
		c.emit(EventHealed, healed)
		return c.fire(evItem)
	})
}

// FinishPlayerResult leaves player-result for victory or the enemy turn
func (c *Controller) FinishPlayerResult() error {
	return c.apply(c.finishPlayerResult)
}

func (c *Controller) finishPlayerResult() error {
	if err := c.guard(evWin); err != nil {
		return err
	}
	if c.session.EnemyHP <= 0 {
		return c.fire(evWin)
	}
	return c.fire(evCounter)
}

// StartEnemyTurn applies one enemy attack. It may be called repeatedly while
// in enemy-turn; reaching 0 HP moves the combat to defeat.
func (c *Controller) StartEnemyTurn() (StrikeResult, error) {
	var res StrikeResult
	err := c.apply(func() error {
		var err error
		res, err = c.strike()
		return err
	})
	return res, err
}

func (c *Controller) strike() (StrikeResult, error) {
	s := &c.session
	if !s.IsActive {
		return StrikeResult{}, ErrNoCombat
	}
	if s.Phase != PhaseEnemyTurn {
		return StrikeResult{}, fmt.Errorf("%w: strike in %s", ErrInvalidPhase, s.Phase)
	}
	if n := len(s.Enemy.BattleDialogue); n > 0 && c.rng.Float64() < DialogueChance {
		line := s.Enemy.BattleDialogue[c.rng.Intn(n)]
		c.appendLog(LogDialogue, fmt.Sprintf("%s: \"%s\"", s.Enemy.Name, line))
	}
	variance := EnemyVarianceMin + c.rng.Float64()*EnemyVarianceSpan
	dmg := EnemyDamage(s.Enemy.Attack, variance)
	s.PlayerHP = clamp(s.PlayerHP-dmg, 0, s.PlayerMaxHP)
	s.LastDamageTaken = dmg
	c.appendLog(LogEnemy, fmt.Sprintf("%s attacks! You take %d damage.", s.Enemy.Name, dmg))
	c.emit(EventDamageTaken, dmg)

	res := StrikeResult{Damage: dmg}
	if s.PlayerHP == 0 {
		res.Defeated = true
		c.appendLog(LogSystem, "You were defeated...")
		if err := c.fire(evDefeat); err != nil {
			return res, err
		}
	}
	return res, nil
}

// FinishEnemyTurn starts the next round
func (c *Controller) FinishEnemyTurn() error {
	return c.apply(c.finishEnemyTurn)
}

func (c *Controller) finishEnemyTurn() error {
	if err := c.guard(evNextRound); err != nil {
		return err
	}
	s := &c.session
	s.CurrentRound++
	s.CurrentWeakness = c.rollWeakness()
	s.SelectedMiniGame = ""
	s.LastTier = ""
	s.LastDamageDealt = 0
	s.LastDamageTaken = 0
	return c.fire(evNextRound)
}

// EndCombat clears the session. It is allowed in every phase.
func (c *Controller) EndCombat() {
	_ = c.apply(func() error {
		wasActive := c.session.IsActive
		c.session = Session{Phase: PhaseIntro}
		c.machine.SetState(string(PhaseIntro))
		c.seq++
		c.struck, c.resolved = false, false
		if wasActive {
			c.emit(EventEnded, 0)
			c.log.Info("combat ended")
		}
		return nil
	})
}

// guard checks that ev is allowed without mutating anything
func (c *Controller) guard(ev string) error {
	if !c.session.IsActive {
		return ErrNoCombat
	}
	if !c.machine.Can(ev) {
		return fmt.Errorf("%w: %s in %s", ErrInvalidPhase, ev, c.session.Phase)
	}
	return nil
}

func (c *Controller) fire(ev string) error {
	if err := c.machine.Event(context.Background(), ev); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPhase, err)
	}
	return nil
}

// entered runs on every phase entry, including restarts
func (c *Controller) entered(p Phase) {
	c.session.Phase = p
	c.seq++
	c.struck, c.resolved = false, false
	c.emit(EventPhase, 0)
	c.log.Debug("phase entered", zap.String("phase", string(p)), zap.Uint64("seq", c.seq))
}

func (c *Controller) rollWeakness() MiniGameKind {
	return MiniGameKinds[c.rng.Intn(len(MiniGameKinds))]
}

func (c *Controller) appendLog(kind LogKind, text string) {
	c.session.Log = append(c.session.Log, LogEntry{
		Round: c.session.CurrentRound,
		Kind:  kind,
		Text:  text,
	})
}

// apply runs fn under the lock and publishes queued events after unlocking
func (c *Controller) apply(fn func() error) error {
	c.mu.Lock()
	err := fn()
	events := c.pending
	c.pending = nil
	subs := make([]func(Event), 0, len(c.subs))
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
	return err
}
