package animation

import (
	"go.uber.org/zap"

	"kotoba-quest/internal/combat"
)

// Timeline names reported in State.Timeline
const (
	TimelineIntro        = "intro"
	TimelinePlayerAttack = "player-attack"
	TimelineEnemyAttack  = "enemy-attack"
	TimelineVictory      = "victory"
	TimelineDefeat       = "defeat"
)

// All play* methods are called with the lock held.

func (s *Sequencer) playIntro(tok combat.Token) {
	gen := s.gen
	s.state.Busy = true
	s.state.Timeline = TimelineIntro
	s.state.Player = Actor{Pose: PoseIdle}
	s.state.Enemy = Actor{Pose: PoseIdle}
	s.after(s.cfg.Ticks(s.cfg.IntroHold), func() {
		if s.update(gen, nil, func() { s.state.Busy = false; s.state.Timeline = "" }) {
			s.resolve(tok)
		}
	})
}

// attack schedules slide-in, slash frames, slide-back and completion for
// one side. impact runs without the lock at the impact frame; done runs
// after the slide back unless the timeline was stopped.
func (s *Sequencer) attack(name string, attacker, defender func() *Actor, dir float64, impact func(tl *timeline), done func()) {
	gen := s.gen
	tl := &timeline{}
	slide := s.cfg.Ticks(s.cfg.Slide)
	frame := s.cfg.Ticks(s.cfg.SlashFrame)
	frames := s.cfg.SlashFrames
	if frames < 1 {
		frames = 1
	}
	impactAt := s.cfg.ImpactFrame
	if impactAt < 0 || impactAt >= frames {
		impactAt = frames - 1
	}

	s.state.Busy = true
	s.state.Timeline = name
	a := attacker()
	a.Pose = PoseAttack
	a.Frame = 0
	a.OffsetX = dir * s.cfg.SlideDistance

	for i := 0; i < frames; i++ {
		i := i
		s.after(slide+i*frame, func() {
			if !s.update(gen, tl, func() { attacker().Frame = i }) {
				return
			}
			if i == impactAt {
				impact(tl)
			}
		})
	}

	s.after(slide+frames*frame, func() {
		s.update(gen, tl, func() {
			a := attacker()
			a.Pose = PoseIdle
			a.Frame = 0
			a.OffsetX = 0
			if d := defender(); d.Pose == PoseHurt {
				d.Pose = PoseIdle
			}
		})
	})

	s.after(2*slide+frames*frame, func() {
		if s.update(gen, tl, func() { s.state.Busy = false; s.state.Timeline = "" }) {
			done()
		}
	})
}

func (s *Sequencer) player() *Actor { return &s.state.Player }
func (s *Sequencer) foe() *Actor    { return &s.state.Enemy }

func (s *Sequencer) playPlayerAttack(tok combat.Token, snap combat.Snapshot) {
	gen := s.gen
	dmg := snap.LastDamageDealt
	weak := snap.WeakPoint(snap.SelectedMiniGame)
	enemyDown := snap.EnemyHP == 0

	s.attack(TimelinePlayerAttack, s.player, s.foe, 1, func(tl *timeline) {
		s.update(gen, tl, func() {
			s.addPopup(Popup{Target: TargetEnemy, Amount: dmg, Miss: dmg == 0, Weak: weak && dmg > 0})
			if dmg > 0 {
				s.state.Enemy.Pose = PoseHurt
				s.state.Flash = true
				s.after(s.cfg.Ticks(s.cfg.Flash), func() {
					s.update(gen, nil, func() { s.state.Flash = false })
				})
			}
		})
	}, func() {
		if enemyDown {
			s.update(gen, nil, func() { s.state.Enemy.Pose = PoseHurt })
		}
		s.resolve(tok)
	})
}

func (s *Sequencer) playEnemyAttack(tok combat.Token) {
	gen := s.gen
	s.attack(TimelineEnemyAttack, s.foe, s.player, -1, func(tl *timeline) {
		// damage, flash and shake arrive as a DamageTaken event during Strike
		res, err := s.director.Strike(tok)
		if err != nil {
			s.log.Debug("enemy strike rejected", zap.Uint64("seq", tok.Seq), zap.Error(err))
			s.update(gen, tl, func() {
				tl.stopped = true
				s.state.Busy = false
				s.state.Timeline = ""
				s.state.Enemy = Actor{Pose: PoseIdle}
			})
			return
		}
		if res.Defeated {
			s.mu.Lock()
			tl.stopped = true
			s.mu.Unlock()
		}
	}, func() {
		s.resolve(tok)
	})
}

func (s *Sequencer) playVictory() {
	gen := s.gen
	s.state.Busy = false
	s.state.Timeline = TimelineVictory
	s.state.Player = Actor{Pose: PoseJump}
	s.state.Enemy.OffsetX = 0
	s.state.Enemy.Pose = PoseHurt

	cf := s.cfg.Ticks(s.cfg.CollapseFrame)
	for i := 0; i < s.cfg.CollapseFrames; i++ {
		i := i
		s.after((i+1)*cf, func() {
			s.update(gen, nil, func() {
				s.state.Enemy.Pose = PoseCollapse
				s.state.Enemy.Frame = i
			})
		})
	}
	end := (s.cfg.CollapseFrames + 1) * cf

	if s.enemy != nil && s.enemy.TrueFormSprite != "" {
		at := end + s.cfg.Ticks(s.cfg.TrueFormDelay)
		for i, d := range s.cfg.Flicker {
			show := i%2 == 0
			s.after(at, func() {
				s.update(gen, nil, func() { s.state.TrueForm = show })
			})
			at += s.cfg.Ticks(d)
		}
		s.after(at, func() {
			s.update(gen, nil, func() {
				s.state.TrueForm = true
				s.state.Enemy = Actor{Pose: PoseIdle}
			})
		})
	} else {
		s.after(end, func() {
			s.update(gen, nil, func() {
				s.state.Enemy.Pose = PoseDown
				s.state.Enemy.Frame = 0
			})
		})
	}

	s.jumpLoop(gen)
}

// jumpLoop toggles the jump frame until the phase leaves victory
func (s *Sequencer) jumpLoop(gen uint64) {
	s.after(s.cfg.Ticks(s.cfg.Jump), func() {
		s.update(gen, nil, func() {
			if s.phase != combat.PhaseVictory {
				return
			}
			s.state.Player.Pose = PoseJump
			s.state.Player.Frame = 1 - s.state.Player.Frame
			s.jumpLoop(gen)
		})
	})
}

func (s *Sequencer) playDefeat() {
	gen := s.gen
	s.state.Busy = false
	s.state.Timeline = TimelineDefeat
	s.state.Enemy = Actor{Pose: PoseIdle}
	s.state.Player.OffsetX = 0

	cf := s.cfg.Ticks(s.cfg.CollapseFrame)
	for i := 0; i < s.cfg.CollapseFrames; i++ {
		i := i
		s.after((i+1)*cf, func() {
			s.update(gen, nil, func() {
				s.state.Player.Pose = PoseCollapse
				s.state.Player.Frame = i
			})
		})
	}
	s.after((s.cfg.CollapseFrames+1)*cf, func() {
		s.update(gen, nil, func() {
			s.state.Player.Pose = PoseDown
			s.state.Player.Frame = 0
		})
	})
}
