package animation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotoba-quest/internal/combat"
)

// fixedRand rolls quiz as the weakness and a 1.0 variance
type fixedRand struct{}

func (fixedRand) Float64() float64 { return 0.5 }
func (fixedRand) Intn(int) int     { return 0 }

type countingDirector struct {
	ctrl     *combat.Controller
	strikes  int
	resolves int
}

func (d *countingDirector) Strike(t combat.Token) (combat.StrikeResult, error) {
	d.strikes++
	return d.ctrl.Strike(t)
}

func (d *countingDirector) Resolve(t combat.Token) error {
	d.resolves++
	return d.ctrl.Resolve(t)
}

const testTickRate = 20

type harness struct {
	ctrl *combat.Controller
	dir  *countingDirector
	seq  *Sequencer
}

func newHarness() *harness {
	ctrl := combat.NewController(combat.Options{Rand: fixedRand{}})
	dir := &countingDirector{ctrl: ctrl}
	seq := NewSequencer(DefaultConfig(testTickRate), dir, nil)
	ctrl.Subscribe(seq.OnEvent)
	return &harness{ctrl: ctrl, dir: dir, seq: seq}
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.seq.Tick()
	}
}

func enemy(hp, attack int) combat.Enemy {
	return combat.Enemy{
		ID: "tanuki", Name: "Tanuki", HP: hp, Attack: attack,
		Sprites:        combat.Sprites{Idle: "tanuki_idle", Attack: "tanuki_attack", Hurt: "tanuki_hurt"},
		TrueFormSprite: "tanuki_true",
	}
}

// Timeline lengths at 20 ticks per second
const (
	introTicks  = 40 // 2s
	impactTicks = 7  // 5 slide + 2 slash frames
	attackTicks = 14 // 5 + 4 + 5
)

func (h *harness) toActionSelect(t *testing.T, e combat.Enemy) {
	t.Helper()
	require.NoError(t, h.ctrl.StartCombat(e, false))
	h.ticks(introTicks)
	require.Equal(t, combat.PhaseActionSelect, h.ctrl.Phase())
}

func TestTicksConversion(t *testing.T) {
	cfg := DefaultConfig(20)
	assert.Equal(t, 40, cfg.Ticks(2*time.Second))
	assert.Equal(t, 1, cfg.Ticks(10*time.Millisecond))
	assert.Equal(t, 30, DefaultConfig(0).TickRate)
}

func TestIntroHoldResolves(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.ctrl.StartCombat(enemy(60, 10), false))
	assert.True(t, h.seq.State().Busy)
	assert.Equal(t, TimelineIntro, h.seq.State().Timeline)

	h.ticks(introTicks - 1)
	assert.Equal(t, combat.PhaseIntro, h.ctrl.Phase())
	h.ticks(1)
	assert.Equal(t, combat.PhaseActionSelect, h.ctrl.Phase())
	assert.Equal(t, 1, h.dir.resolves)
	assert.False(t, h.seq.State().Busy)
}

func TestPlayerAttackImpactThenEnemyTurn(t *testing.T) {
	h := newHarness()
	h.toActionSelect(t, enemy(60, 10))
	require.NoError(t, h.ctrl.SelectMiniGame(combat.MiniGameQuiz))
	require.NoError(t, h.ctrl.CompleteMiniGame(combat.TierFast))

	st := h.seq.State()
	assert.Equal(t, TimelinePlayerAttack, st.Timeline)
	assert.Equal(t, PoseAttack, st.Player.Pose)
	assert.Equal(t, 140.0, st.Player.OffsetX)
	assert.Empty(t, st.Popups)

	h.ticks(impactTicks)
	st = h.seq.State()
	require.Len(t, st.Popups, 1)
	assert.Equal(t, TargetEnemy, st.Popups[0].Target)
	assert.Equal(t, 56, st.Popups[0].Amount)
	assert.True(t, st.Popups[0].Weak)
	assert.True(t, st.Flash)
	assert.Equal(t, PoseHurt, st.Enemy.Pose)
	assert.Equal(t, "tanuki_hurt", st.Enemy.Sprite)

	h.ticks(attackTicks - impactTicks)
	assert.Equal(t, combat.PhaseEnemyTurn, h.ctrl.Phase())
	assert.Equal(t, 0.0, h.seq.State().Player.OffsetX)
}

func TestEnemyStrikeLandsAtImpactFrame(t *testing.T) {
	h := newHarness()
	h.toActionSelect(t, enemy(60, 10))
	require.NoError(t, h.ctrl.UseItem(30, "tea"))

	// heal popup is visible before the strike lands
	st := h.seq.State()
	require.Len(t, st.Popups, 1)
	assert.True(t, st.Popups[0].Heal)
	assert.Equal(t, 0, h.ctrl.Snapshot().LastDamageTaken)
	assert.Equal(t, TimelineEnemyAttack, st.Timeline)

	h.ticks(impactTicks - 1)
	assert.Equal(t, 0, h.dir.strikes)
	assert.Equal(t, 100, h.ctrl.Snapshot().PlayerHP)

	h.ticks(1)
	assert.Equal(t, 1, h.dir.strikes)
	assert.Equal(t, 90, h.ctrl.Snapshot().PlayerHP)
	st = h.seq.State()
	assert.True(t, st.Shake)
	assert.Equal(t, PoseHurt, st.Player.Pose)
	assert.Equal(t, combat.PhaseEnemyTurn, h.ctrl.Phase())

	h.ticks(attackTicks - impactTicks)
	snap := h.ctrl.Snapshot()
	assert.Equal(t, combat.PhaseActionSelect, snap.Phase)
	assert.Equal(t, 2, snap.CurrentRound)
	assert.False(t, h.seq.State().Shake)
}

func TestStrikeToDefeatSkipsResolve(t *testing.T) {
	h := newHarness()
	h.toActionSelect(t, enemy(60, 500))
	resolvesBefore := h.dir.resolves
	require.NoError(t, h.ctrl.UseItem(0, "nothing"))

	h.ticks(impactTicks)
	assert.Equal(t, combat.PhaseDefeat, h.ctrl.Phase())
	h.ticks(100)
	assert.Equal(t, resolvesBefore, h.dir.resolves)
	assert.Equal(t, combat.PhaseDefeat, h.ctrl.Phase())

	st := h.seq.State()
	assert.Equal(t, TimelineDefeat, st.Timeline)
	assert.Equal(t, PoseDown, st.Player.Pose)
	assert.Equal(t, "hero_down", st.Player.Sprite)
	assert.Zero(t, h.seq.Pending())
}

func TestVictoryTrueFormAndJumpLoop(t *testing.T) {
	h := newHarness()
	h.toActionSelect(t, enemy(50, 10))
	require.NoError(t, h.ctrl.SelectMiniGame(combat.MiniGameQuiz))
	require.NoError(t, h.ctrl.CompleteMiniGame(combat.TierFast))
	h.ticks(attackTicks)
	require.Equal(t, combat.PhaseVictory, h.ctrl.Phase())

	st := h.seq.State()
	assert.Equal(t, TimelineVictory, st.Timeline)
	assert.False(t, st.TrueForm)

	h.ticks(60)
	st = h.seq.State()
	assert.True(t, st.TrueForm)
	assert.Equal(t, "tanuki_true", st.Enemy.Sprite)
	assert.Equal(t, PoseJump, st.Player.Pose)

	// the jump loop keeps running while the phase stays victory
	frame := st.Player.Frame
	h.ticks(DefaultConfig(testTickRate).Ticks(300 * time.Millisecond))
	assert.NotEqual(t, frame, h.seq.State().Player.Frame)
	assert.Equal(t, 1, h.seq.Pending())

	h.ctrl.EndCombat()
	assert.Zero(t, h.seq.Pending())
}

func TestVictoryWithoutTrueForm(t *testing.T) {
	h := newHarness()
	e := enemy(20, 10)
	e.TrueFormSprite = ""
	h.toActionSelect(t, e)
	require.NoError(t, h.ctrl.SelectMiniGame(combat.MiniGameMatching))
	require.NoError(t, h.ctrl.CompleteMiniGame(combat.TierMedium))
	h.ticks(attackTicks + 40)
	st := h.seq.State()
	assert.False(t, st.TrueForm)
	assert.Equal(t, PoseDown, st.Enemy.Pose)
}

func TestResetCancelsCues(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.ctrl.StartCombat(enemy(60, 10), false))
	h.ticks(10)
	require.NotZero(t, h.seq.Pending())

	h.seq.Reset()
	assert.Zero(t, h.seq.Pending())
	h.ticks(introTicks * 2)
	assert.Zero(t, h.dir.resolves)
	assert.Equal(t, combat.PhaseIntro, h.ctrl.Phase())
}

func TestEndCombatMidAttackStopsTimeline(t *testing.T) {
	h := newHarness()
	h.toActionSelect(t, enemy(60, 10))
	require.NoError(t, h.ctrl.UseItem(0, "nothing"))
	h.ticks(3)
	h.ctrl.EndCombat()

	h.ticks(50)
	assert.Zero(t, h.dir.strikes)
	assert.False(t, h.ctrl.Active())
	st := h.seq.State()
	assert.False(t, st.Busy)
	assert.Equal(t, "", st.Enemy.Sprite)
}

func TestRestartDuringTimelineUsesFreshTokens(t *testing.T) {
	h := newHarness()
	h.toActionSelect(t, enemy(60, 10))
	require.NoError(t, h.ctrl.SelectMiniGame(combat.MiniGameQuiz))
	require.NoError(t, h.ctrl.CompleteMiniGame(combat.TierSlow))
	h.ticks(3)

	require.NoError(t, h.ctrl.StartCombat(enemy(60, 10), false))
	h.ticks(introTicks)
	assert.Equal(t, combat.PhaseActionSelect, h.ctrl.Phase())
	assert.Equal(t, 1, h.ctrl.Snapshot().CurrentRound)
}

func TestIdleBreathing(t *testing.T) {
	h := newHarness()
	h.toActionSelect(t, enemy(60, 10))
	interval := DefaultConfig(testTickRate).Ticks(500 * time.Millisecond)

	first := h.seq.State().Player.Frame
	h.ticks(interval)
	second := h.seq.State().Player.Frame
	h.ticks(interval)
	third := h.seq.State().Player.Frame

	assert.NotEqual(t, first, second)
	assert.Equal(t, first, third)
	assert.Equal(t, PoseIdle, h.seq.State().Enemy.Pose)
}

func TestPopupsExpire(t *testing.T) {
	h := newHarness()
	h.toActionSelect(t, enemy(60, 10))
	require.NoError(t, h.ctrl.UseItem(5, "tea"))
	require.NotEmpty(t, h.seq.State().Popups)
	h.ticks(attackTicks + DefaultConfig(testTickRate).Ticks(900*time.Millisecond))
	assert.Empty(t, h.seq.State().Popups)
}
