package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestEmitRequiresStart(t *testing.T) {
	el := New(nil)
	assert.False(t, el.EmitSimple(TypePhase, "s1", 1, PhasePayload{Phase: "intro"}))
}

func TestRecordsFlushAsJSONL(t *testing.T) {
	var buf bytes.Buffer
	el := New(nil)
	require.NoError(t, el.StartWriter(&buf))

	assert.True(t, el.EmitSimple(TypeCombatStart, "s1", 1, CombatStartPayload{EnemyID: "kappa", EnemyHP: 60, PlayerHP: 100}))
	assert.True(t, el.EmitSimple(TypeDamageDealt, "s1", 1, DamagePayload{Amount: 56, TargetHP: 4}))
	el.Stop()

	sc := bufio.NewScanner(&buf)
	var lines []map[string]interface{}
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "combat_start", lines[0]["type"])
	assert.Equal(t, float64(1), lines[0]["sequence"])
	assert.Equal(t, "damage_dealt", lines[1]["type"])
	payload := lines[1]["payload"].(map[string]interface{})
	assert.Equal(t, float64(56), payload["amount"])
}

func TestPerSessionRateLimit(t *testing.T) {
	el := New(nil)
	require.NoError(t, el.StartWriter(nil))
	defer el.Stop()

	accepted := 0
	for i := 0; i < MaxRecordsPerSession*3; i++ {
		if el.EmitSimple(TypePhase, "noisy", 1, nil) {
			accepted++
		}
	}
	assert.Less(t, accepted, MaxRecordsPerSession*3)
	assert.True(t, el.EmitSimple(TypePhase, "quiet", 1, nil))
	assert.NotZero(t, el.Dropped())
}

func TestRingOverwritesOldest(t *testing.T) {
	el := New(nil)
	el.global = rate.NewLimiter(rate.Inf, 0)
	el.running.Store(true) // no writer: keep everything pending

	for i := 0; i < BufferSize+10; i++ {
		require.True(t, el.Emit(Record{Type: TypePhase}))
	}
	stats := el.Stats()
	assert.Equal(t, uint64(BufferSize), stats["pending"])
	assert.Equal(t, uint64(10), el.Dropped())

	batch := el.collect(nil)
	require.NotEmpty(t, batch)
	assert.Equal(t, uint64(11), batch[0].Sequence)
}

func TestStartWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combat.jsonl")
	el := New(nil)
	require.NoError(t, el.Start(path))
	el.EmitSimple(TypeReward, "s1", 3, RewardPayload{EnemyID: "kappa", Yen: 120, XP: 30, Level: 1})
	el.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"reward"`)
	assert.Contains(t, string(data), `"yen":120`)
}
