package encounter

import (
	"fmt"

	"go.uber.org/zap"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/eventlog"
)

// onEvent handles controller events. Every controller call is made by an
// encounter method or a sequencer cue running inside Tick, so mu is held.
func (e *Encounter) onEvent(ev combat.Event) {
	snap := ev.Snapshot
	switch ev.Type {
	case combat.EventStarted:
		e.deps.Metrics.CombatStarted(snap.Enemy.ID, snap.IsRandomEncounter)
		e.record(eventlog.TypeCombatStart, snap.CurrentRound, eventlog.CombatStartPayload{
			EnemyID:     snap.Enemy.ID,
			EnemyHP:     snap.EnemyHP,
			PlayerHP:    snap.PlayerHP,
			RandomEnemy: snap.IsRandomEncounter,
		})

	case combat.EventPhase:
		e.record(eventlog.TypePhase, snap.CurrentRound, eventlog.PhasePayload{
			Phase: string(ev.Phase),
			Seq:   ev.Seq,
		})
		e.syncFocus(snap)

	case combat.EventDamageDealt:
		e.deps.Metrics.Damage("dealt", ev.Amount)
		e.record(eventlog.TypeDamageDealt, snap.CurrentRound, eventlog.DamagePayload{
			Amount:   ev.Amount,
			TargetHP: snap.EnemyHP,
		})

	case combat.EventDamageTaken:
		e.deps.Metrics.Damage("taken", ev.Amount)
		e.record(eventlog.TypeDamageTaken, snap.CurrentRound, eventlog.DamagePayload{
			Amount:   ev.Amount,
			TargetHP: snap.PlayerHP,
		})

	case combat.EventHealed:
		e.record(eventlog.TypeHeal, snap.CurrentRound, eventlog.DamagePayload{
			Amount:   ev.Amount,
			TargetHP: snap.PlayerHP,
		})

	case combat.EventEnded:
		e.cancelGame()
		e.syncFocus(snap)
	}
	e.bump()
}

// syncFocus gives input to whatever the phase lets the player drive.
// Nothing holds focus while a timeline plays.
func (e *Encounter) syncFocus(snap combat.Snapshot) {
	e.closeItems()
	e.menu = nil

	if !snap.IsActive {
		e.arb.Focus(FocusOverworld, e.deps.Overworld)
		return
	}
	switch snap.Phase {
	case combat.PhaseActionSelect:
		e.menu = e.actionMenu(snap)
		e.arb.Focus(MenuAction, e.menu)
	case combat.PhaseMiniGame:
		if e.game != nil {
			e.arb.Focus(FocusMiniGame, e.game)
		} else {
			e.arb.Clear()
		}
	case combat.PhaseVictory, combat.PhaseDefeat:
		e.menu = e.resultMenu(snap.Phase)
		e.arb.Focus(MenuResult, e.menu)
	default:
		e.arb.Clear()
	}
}

var gameLabels = map[combat.MiniGameKind]string{
	combat.MiniGameQuiz:       "Quiz",
	combat.MiniGameMatching:   "Matching",
	combat.MiniGameUnscramble: "Unscramble",
}

func (e *Encounter) actionMenu(snap combat.Snapshot) *menu {
	m := &menu{name: MenuAction}
	for _, kind := range combat.MiniGameKinds {
		m.options = append(m.options, MenuOption{
			ID:        string(kind),
			Label:     gameLabels[kind],
			WeakPoint: snap.WeakPoint(kind),
		})
	}
	m.options = append(m.options, MenuOption{
		ID:       OptionItems,
		Label:    "Items",
		Disabled: len(e.profile.itemIDs()) == 0,
	})
	m.choose = func(opt MenuOption) {
		if opt.ID == OptionItems {
			e.openItems()
			return
		}
		if err := e.selectMiniGame(combat.MiniGameKind(opt.ID)); err != nil {
			e.log.Warn("menu selection failed", zap.String("option", opt.ID), zap.Error(err))
		}
	}
	m.toggle = e.openItems
	return m
}

func (e *Encounter) resultMenu(phase combat.Phase) *menu {
	m := &menu{name: MenuResult}
	if phase == combat.PhaseVictory {
		m.options = []MenuOption{{ID: OptionContinue, Label: "Continue"}}
	} else {
		m.options = []MenuOption{
			{ID: OptionRetry, Label: "Retry"},
			{ID: OptionGiveUp, Label: "Give up"},
		}
	}
	m.choose = func(opt MenuOption) {
		snap := e.ctrl.Snapshot()
		var err error
		switch opt.ID {
		case OptionContinue:
			if err = requirePhase(snap, combat.PhaseVictory); err == nil {
				e.collect(snap)
			}
		case OptionRetry:
			if err = requirePhase(snap, combat.PhaseDefeat); err == nil {
				err = e.retry(snap)
			}
		case OptionGiveUp:
			if err = requirePhase(snap, combat.PhaseDefeat); err == nil {
				e.giveUp(snap)
			}
		}
		if err != nil {
			e.log.Warn("result menu failed", zap.String("option", opt.ID), zap.Error(err))
		}
	}
	return m
}

func (e *Encounter) openItems() {
	if e.items != nil {
		return
	}
	ids := e.profile.itemIDs()
	if len(ids) == 0 {
		return
	}
	m := &menu{name: MenuItems}
	for _, id := range ids {
		item, err := e.deps.Catalog.Item(id)
		if err != nil {
			continue
		}
		m.options = append(m.options, MenuOption{
			ID:     id,
			Label:  item.Name,
			Detail: fmt.Sprintf("x%d  +%d HP", e.profile.Items[id], item.Heal),
		})
	}
	m.choose = func(opt MenuOption) {
		if err := e.useItem(opt.ID); err != nil {
			e.log.Warn("item use failed", zap.String("item", opt.ID), zap.Error(err))
		}
	}
	m.back = e.closeItems
	m.toggle = e.closeItems
	e.items = m
	e.popItems = e.arb.Push(MenuItems, m)
}

func (e *Encounter) closeItems() {
	if e.popItems != nil {
		e.popItems()
	}
	e.items = nil
	e.popItems = nil
}
