// Package animation turns combat phases into tick-driven timelines and
// advances the combat controller when a timeline completes.
package animation

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"kotoba-quest/internal/combat"
)

// Director is the part of the combat controller timelines drive
type Director interface {
	Strike(combat.Token) (combat.StrikeResult, error)
	Resolve(combat.Token) error
}

// cue is a scheduled callback. Callbacks run without the sequencer lock.
type cue struct {
	at    uint64
	order uint64
	gen   uint64
	fn    func()
}

// timeline is shared by the cues of one attack so an impact can stop the rest
type timeline struct {
	stopped bool
}

// Sequencer schedules timelines on a tick clock. Reset cancels every
// pending cue synchronously.
type Sequencer struct {
	mu       sync.Mutex
	cfg      Config
	director Director
	log      *zap.Logger

	state  State
	tick   uint64
	gen    uint64
	cues   []cue
	nextID uint64
	rev    uint64

	active bool
	phase  combat.Phase
	enemy  *combat.Enemy
	idleAt uint64
}

// NewSequencer creates a sequencer driving director
func NewSequencer(cfg Config, director Director, logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		cfg:      cfg,
		director: director,
		log:      logger,
		state:    idleState(),
	}
}

// OnEvent reacts to controller events. Register it with Controller.Subscribe.
func (s *Sequencer) OnEvent(ev combat.Event) {
	if ev.Type == combat.EventEnded {
		s.Reset()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rev++

	switch ev.Type {
	case combat.EventStarted:
		s.resetLocked()
		s.active = true
		s.enemy = ev.Snapshot.Enemy

	case combat.EventHealed:
		s.addPopup(Popup{Target: TargetPlayer, Amount: ev.Amount, Heal: true})

	case combat.EventDamageTaken:
		s.addPopup(Popup{Target: TargetPlayer, Amount: ev.Amount, Miss: ev.Amount == 0})
		s.state.Player.Pose = PoseHurt
		s.state.Flash = true
		s.state.Shake = true
		gen := s.gen
		s.after(s.cfg.Ticks(s.cfg.Flash), func() {
			s.update(gen, nil, func() { s.state.Flash = false })
		})
		s.after(s.cfg.Ticks(s.cfg.Shake), func() {
			s.update(gen, nil, func() { s.state.Shake = false })
		})

	case combat.EventPhase:
		s.phase = ev.Phase
		tok := ev.Token()
		switch ev.Phase {
		case combat.PhaseIntro:
			s.playIntro(tok)
		case combat.PhaseActionSelect, combat.PhaseMiniGame:
			s.toIdle()
		case combat.PhasePlayerResult:
			s.playPlayerAttack(tok, ev.Snapshot)
		case combat.PhaseEnemyTurn:
			s.playEnemyAttack(tok)
		case combat.PhaseVictory:
			s.playVictory()
		case combat.PhaseDefeat:
			s.playDefeat()
		}
	}
}

// Tick advances the clock one tick and runs due cues
func (s *Sequencer) Tick() {
	s.mu.Lock()
	s.tick++
	s.state.Tick = s.tick
	s.agePopups()
	s.breathe()

	var due []cue
	keep := s.cues[:0]
	for _, c := range s.cues {
		switch {
		case c.gen != s.gen:
			// cancelled
		case c.at <= s.tick:
			due = append(due, c)
		default:
			keep = append(keep, c)
		}
	}
	s.cues = keep
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].order < due[j].order
	})
	for _, c := range due {
		c.fn()
	}
}

// Reset cancels every pending cue and returns to the idle state
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.rev++
}

func (s *Sequencer) resetLocked() {
	s.gen++
	s.cues = nil
	s.active = false
	s.phase = ""
	s.enemy = nil
	s.state = idleState()
	s.state.Tick = s.tick
}

// State returns a copy of the presentation state with sprite keys filled in
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Popups = append([]Popup{}, s.state.Popups...)
	st.Player.Sprite = "hero_" + string(st.Player.Pose)
	st.Enemy.Sprite = s.enemySprite()
	return st
}

// Pending returns the number of live scheduled cues
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.cues {
		if c.gen == s.gen {
			n++
		}
	}
	return n
}

// Revision changes whenever the presentation state changes
func (s *Sequencer) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

func (s *Sequencer) enemySprite() string {
	if s.enemy == nil {
		return ""
	}
	if s.state.TrueForm && s.enemy.TrueFormSprite != "" {
		return s.enemy.TrueFormSprite
	}
	switch s.state.Enemy.Pose {
	case PoseAttack:
		return s.enemy.Sprites.Attack
	case PoseHurt, PoseCollapse, PoseDown:
		return s.enemy.Sprites.Hurt
	default:
		return s.enemy.Sprites.Idle
	}
}

// after schedules fn ticks from now. Caller holds the lock.
func (s *Sequencer) after(ticks int, fn func()) {
	s.nextID++
	s.cues = append(s.cues, cue{at: s.tick + uint64(ticks), order: s.nextID, gen: s.gen, fn: fn})
}

// update applies fn under the lock unless the generation or timeline ended
func (s *Sequencer) update(gen uint64, tl *timeline, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || (tl != nil && tl.stopped) {
		return false
	}
	fn()
	s.rev++
	return true
}

func (s *Sequencer) resolve(tok combat.Token) {
	if err := s.director.Resolve(tok); err != nil {
		s.log.Debug("timeline resolve rejected",
			zap.String("phase", string(tok.Phase)),
			zap.Uint64("seq", tok.Seq),
			zap.Error(err))
	}
}

func (s *Sequencer) addPopup(p Popup) {
	p.TicksLeft = s.cfg.Ticks(s.cfg.Popup)
	s.state.Popups = append(s.state.Popups, p)
}

func (s *Sequencer) agePopups() {
	if len(s.state.Popups) == 0 {
		return
	}
	keep := s.state.Popups[:0]
	for _, p := range s.state.Popups {
		p.TicksLeft--
		if p.TicksLeft > 0 {
			keep = append(keep, p)
		}
	}
	s.state.Popups = keep
	s.rev++
}

// breathe alternates idle frames while nothing else plays
func (s *Sequencer) breathe() {
	if !s.active || s.state.Busy {
		return
	}
	if s.phase != combat.PhaseActionSelect && s.phase != combat.PhaseMiniGame {
		return
	}
	if s.tick < s.idleAt {
		return
	}
	s.idleAt = s.tick + uint64(s.cfg.Ticks(s.cfg.Idle))
	for _, a := range []*Actor{&s.state.Player, &s.state.Enemy} {
		if a.Pose == PoseIdle {
			a.Frame = 1 - a.Frame
		}
	}
	s.rev++
}

func (s *Sequencer) toIdle() {
	s.state.Busy = false
	s.state.Timeline = ""
	s.state.Player = Actor{Pose: PoseIdle}
	s.state.Enemy = Actor{Pose: PoseIdle}
	s.idleAt = s.tick + uint64(s.cfg.Ticks(s.cfg.Idle))
}
