package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIntroOnce(t *testing.T) {
	c := newTestController(&scriptedRand{})
	require.NoError(t, c.StartCombat(testEnemy(60, 10), false))

	tok, err := c.BeginResolution()
	require.NoError(t, err)
	assert.Equal(t, PhaseIntro, tok.Phase)

	require.NoError(t, c.Resolve(tok))
	assert.Equal(t, PhaseActionSelect, c.Phase())
	assert.ErrorIs(t, c.Resolve(tok), ErrStaleToken)
}

func TestBeginResolutionOnlyInAnimatedPhases(t *testing.T) {
	c := newTestController(&scriptedRand{})
	_, err := c.BeginResolution()
	assert.ErrorIs(t, err, ErrNoCombat)

	toActionSelect(t, c, testEnemy(60, 10))
	_, err = c.BeginResolution()
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestEnemyTurnTokenRequiresStrike(t *testing.T) {
	c := newTestController(&scriptedRand{})
	toActionSelect(t, c, testEnemy(60, 10))
	require.NoError(t, c.UseItem(10, "tea"))

	tok, err := c.BeginResolution()
	require.NoError(t, err)
	assert.ErrorIs(t, c.Resolve(tok), ErrImpactPending)

	res, err := c.Strike(tok)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Damage)

	_, err = c.Strike(tok)
	assert.ErrorIs(t, err, ErrStaleToken)
	assert.Equal(t, 90, c.Snapshot().PlayerHP)

	require.NoError(t, c.Resolve(tok))
	assert.Equal(t, PhaseActionSelect, c.Phase())
	assert.Equal(t, 2, c.Snapshot().CurrentRound)
}

func TestStrikeWithWrongPhaseToken(t *testing.T) {
	c := newTestController(&scriptedRand{})
	require.NoError(t, c.StartCombat(testEnemy(60, 10), false))
	tok, err := c.BeginResolution()
	require.NoError(t, err)
	_, err = c.Strike(tok)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestStrikeToDefeatInvalidatesToken(t *testing.T) {
	c := newTestController(&scriptedRand{})
	toActionSelect(t, c, testEnemy(60, 200))
	require.NoError(t, c.UseItem(0, "nothing"))

	tok, err := c.BeginResolution()
	require.NoError(t, err)
	res, err := c.Strike(tok)
	require.NoError(t, err)
	assert.True(t, res.Defeated)
	assert.Equal(t, PhaseDefeat, c.Phase())
	assert.ErrorIs(t, c.Resolve(tok), ErrStaleToken)
}

func TestPlayerResultTokenBranches(t *testing.T) {
	c := newTestController(&scriptedRand{})
	toActionSelect(t, c, testEnemy(30, 10))
	require.NoError(t, c.SelectMiniGame(MiniGameQuiz))
	require.NoError(t, c.CompleteMiniGame(TierFast))

	tok, err := c.BeginResolution()
	require.NoError(t, err)
	require.NoError(t, c.Resolve(tok))
	assert.Equal(t, PhaseVictory, c.Phase())
}

func TestTokensGoStaleAcrossPhasesAndRestarts(t *testing.T) {
	c := newTestController(&scriptedRand{})
	require.NoError(t, c.StartCombat(testEnemy(60, 10), false))
	intro, err := c.BeginResolution()
	require.NoError(t, err)

	// a direct call leaves the phase
	require.NoError(t, c.FinishIntro())
	assert.ErrorIs(t, c.Resolve(intro), ErrStaleToken)

	// restart re-enters intro with a new instance
	require.NoError(t, c.StartCombat(testEnemy(60, 10), false))
	assert.ErrorIs(t, c.Resolve(intro), ErrStaleToken)
	fresh, err := c.BeginResolution()
	require.NoError(t, err)
	assert.NotEqual(t, intro.Seq, fresh.Seq)

	c.EndCombat()
	assert.ErrorIs(t, c.Resolve(fresh), ErrStaleToken)
}

func TestEventTokenMatchesBeginResolution(t *testing.T) {
	c := newTestController(&scriptedRand{})
	var last Event
	c.Subscribe(func(ev Event) {
		if ev.Type == EventPhase {
			last = ev
		}
	})
	require.NoError(t, c.StartCombat(testEnemy(60, 10), false))
	tok, err := c.BeginResolution()
	require.NoError(t, err)
	assert.Equal(t, tok, last.Token())
}
