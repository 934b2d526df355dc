package encounter

import (
	"kotoba-quest/internal/animation"
	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/minigame"
)

// View is everything a client needs to draw the encounter
type View struct {
	SessionID string          `json:"sessionId"`
	Combat    combat.Snapshot `json:"combat"`
	Anim      animation.State `json:"anim"`
	MiniGame  *minigame.View  `json:"miniGame,omitempty"`
	Menu      *MenuView       `json:"menu,omitempty"`
	Focus     string          `json:"focus"`
	Notice    string          `json:"notice,omitempty"`
	Profile   Profile         `json:"profile"`
	Version   uint64          `json:"version"`
}

// View returns a consistent copy of the encounter state
func (e *Encounter) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		SessionID: e.id,
		Combat:    e.ctrl.Snapshot(),
		Anim:      e.seq.State(),
		Focus:     e.arb.Focused(),
		Notice:    e.notice,
		Profile:   e.profile.clone(),
		Version:   e.Version(),
	}
	switch {
	case e.game != nil:
		gv := e.game.View()
		v.MiniGame = &gv
	case e.lastGame != nil && v.Combat.Phase == combat.PhasePlayerResult:
		gv := *e.lastGame
		v.MiniGame = &gv
	}
	switch {
	case e.items != nil:
		v.Menu = e.items.view()
	case e.menu != nil:
		v.Menu = e.menu.view()
	}
	return v
}

// Snapshot returns the combat session
func (e *Encounter) Snapshot() combat.Snapshot {
	return e.ctrl.Snapshot()
}

// Profile returns a copy of the player profile
func (e *Encounter) Profile() Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile.clone()
}
