package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/config"
	"kotoba-quest/internal/content"
	"kotoba-quest/internal/encounter"
	"kotoba-quest/internal/leaderboard"
	"kotoba-quest/internal/render"
)

type testEnv struct {
	t       *testing.T
	arena   *encounter.Arena
	catalog *content.Catalog
	board   *leaderboard.Board
	cookies *Cookies
	server  *Server
	ts      *httptest.Server
	client  *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	catalog, err := content.Load("")
	require.NoError(t, err)
	board := leaderboard.New()
	settings := config.NewSettings(combat.DifficultyMedium)

	cfg := encounter.DefaultArenaConfig()
	cfg.TickRate = 20
	cfg.StartingItems = map[string]int{"tea": 1}
	arena := encounter.NewArena(cfg, encounter.Deps{
		Catalog:  catalog,
		Settings: settings,
		Metrics:  PromMetrics{},
		Ranker:   board,
	}, nil)

	renderer, err := render.New(config.DefaultRender(), nil)
	require.NoError(t, err)

	cookies := NewCookies("test-secret", nil)
	srv := NewServer(RouterConfig{
		Arena:           arena,
		Catalog:         catalog,
		Settings:        settings,
		Cookies:         cookies,
		Rankings:        board,
		Renderer:        renderer,
		RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		DisableLogging:  true,
	}, HubConfig{PushInterval: 5 * time.Millisecond})

	go srv.Hub().Run()
	ts := httptest.NewServer(srv.Router())

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	env := &testEnv{
		t:       t,
		arena:   arena,
		catalog: catalog,
		board:   board,
		cookies: cookies,
		server:  srv,
		ts:      ts,
		client:  &http.Client{Jar: jar},
	}
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
		<-srv.Hub().Done()
	})
	return env
}

func (env *testEnv) do(method, path string, body interface{}) (*http.Response, []byte) {
	env.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(env.t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, env.ts.URL+path, r)
	require.NoError(env.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.client.Do(req)
	require.NoError(env.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(env.t, err)
	return resp, data
}

func (env *testEnv) view(data []byte) encounter.View {
	env.t.Helper()
	var v encounter.View
	require.NoError(env.t, json.Unmarshal(data, &v))
	return v
}

func (env *testEnv) state() encounter.View {
	env.t.Helper()
	resp, data := env.do(http.MethodGet, "/api/state", nil)
	require.Equal(env.t, http.StatusOK, resp.StatusCode)
	return env.view(data)
}

// tickUntil drives the arena until the session reaches phase
func (env *testEnv) tickUntil(phase combat.Phase) encounter.View {
	env.t.Helper()
	for i := 0; i < 400; i++ {
		if v := env.state(); v.Combat.Phase == phase {
			return v
		}
		for j := 0; j < 5; j++ {
			env.arena.Tick()
		}
	}
	env.t.Fatalf("never reached %s", phase)
	return encounter.View{}
}

func (env *testEnv) sessionID() string {
	env.t.Helper()
	u, err := url.Parse(env.ts.URL)
	require.NoError(env.t, err)
	for _, c := range env.client.Jar.Cookies(u) {
		if c.Name == SessionCookieName {
			id, err := env.cookies.Decode(c.Value)
			require.NoError(env.t, err)
			return id
		}
	}
	env.t.Fatal("no session cookie")
	return ""
}

func (env *testEnv) quizAnswer(v encounter.View) int {
	env.t.Helper()
	require.NotNil(env.t, v.MiniGame)
	require.NotNil(env.t, v.MiniGame.Quiz)
	var english string
	for _, w := range env.catalog.Words() {
		if w.Display() == v.MiniGame.Quiz.Prompt {
			english = w.English
		}
	}
	for i, c := range v.MiniGame.Quiz.Choices {
		if c == english {
			return i
		}
	}
	env.t.Fatalf("no choice matches %q", v.MiniGame.Quiz.Prompt)
	return -1
}

func TestCombatFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(http.MethodPost, "/api/combat/start", map[string]interface{}{"enemyId": "kappa"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	v := env.view(data)
	assert.Equal(t, combat.PhaseIntro, v.Combat.Phase)
	assert.Equal(t, "kappa", v.Combat.Enemy.ID)
	assert.NotContains(t, string(data), "currentWeakness")
	id := env.sessionID()
	assert.Equal(t, id, v.SessionID)

	v = env.tickUntil(combat.PhaseActionSelect)
	require.NotNil(t, v.Menu)
	assert.Equal(t, encounter.MenuAction, v.Menu.Name)

	resp, data = env.do(http.MethodPost, "/api/combat/select", map[string]string{"game": "quiz"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	v = env.view(data)
	assert.Equal(t, combat.PhaseMiniGame, v.Combat.Phase)

	resp, data = env.do(http.MethodPost, "/api/minigame/quiz", map[string]int{"choice": env.quizAnswer(v)})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	v = env.view(data)
	assert.Equal(t, combat.PhasePlayerResult, v.Combat.Phase)
	assert.Equal(t, combat.TierFast, v.Combat.LastTier)
	assert.Less(t, v.Combat.EnemyHP, v.Combat.EnemyMaxHP)

	// a second answer targets a finished game
	resp, _ = env.do(http.MethodPost, "/api/minigame/quiz", map[string]int{"choice": 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(http.MethodPost, "/api/combat/continue", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no reward before victory")

	resp, data = env.do(http.MethodPost, "/api/combat/abort", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, env.view(data).Combat.IsActive)

	resp, _ = env.do(http.MethodPost, "/api/combat/abort", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestVictoryRewardAndLeaderboard(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(http.MethodPost, "/api/combat/start", map[string]interface{}{"enemyId": "kappa"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for i := 0; i < 20; i++ {
		v := env.tickUntilEither(combat.PhaseActionSelect, combat.PhaseVictory)
		if v.Combat.Phase == combat.PhaseVictory {
			break
		}
		resp, data := env.do(http.MethodPost, "/api/combat/select", map[string]string{"game": "quiz"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		resp, data = env.do(http.MethodPost, "/api/minigame/quiz", map[string]int{"choice": env.quizAnswer(env.view(data))})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	}

	resp, data := env.do(http.MethodPost, "/api/combat/continue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var out struct {
		Reward encounter.Reward `json:"reward"`
		State  encounter.View   `json:"state"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	kappa, err := env.catalog.Enemy("kappa")
	require.NoError(t, err)
	assert.Equal(t, kappa.YenReward, out.Reward.Yen)
	assert.False(t, out.State.Combat.IsActive)
	assert.True(t, out.State.Profile.Flags[encounter.BattleFlag("kappa")])

	resp, data = env.do(http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var board struct {
		Entries  []leaderboardRow `json:"entries"`
		Total    int              `json:"total"`
		YourRank int              `json:"yourRank"`
	}
	require.NoError(t, json.Unmarshal(data, &board))
	require.Len(t, board.Entries, 1)
	assert.True(t, board.Entries[0].You)
	assert.Equal(t, float64(kappa.XPReward), board.Entries[0].XP)
	assert.Equal(t, 1, board.YourRank)
	assert.NotContains(t, string(data), env.sessionID())
}

func (env *testEnv) tickUntilEither(a, b combat.Phase) encounter.View {
	env.t.Helper()
	for i := 0; i < 400; i++ {
		v := env.state()
		if v.Combat.Phase == a || v.Combat.Phase == b {
			return v
		}
		for j := 0; j < 5; j++ {
			env.arena.Tick()
		}
	}
	env.t.Fatalf("never reached %s or %s", a, b)
	return encounter.View{}
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown enemy", http.MethodPost, "/api/combat/start", map[string]string{"enemyId": "nope"}, http.StatusNotFound},
		{"missing enemy", http.MethodPost, "/api/combat/start", map[string]string{}, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/combat/start", "{not json", http.StatusBadRequest},
		{"select without combat", http.MethodPost, "/api/combat/select", map[string]string{"game": "quiz"}, http.StatusConflict},
		{"item without combat", http.MethodPost, "/api/combat/item", map[string]string{"itemId": "tea"}, http.StatusConflict},
		{"retry without combat", http.MethodPost, "/api/combat/retry", nil, http.StatusConflict},
		{"quiz without game", http.MethodPost, "/api/minigame/quiz", map[string]int{"choice": 1}, http.StatusConflict},
		{"undo without game", http.MethodPost, "/api/minigame/undo", nil, http.StatusConflict},
		{"bad difficulty", http.MethodPut, "/api/settings/difficulty", map[string]string{"difficulty": "brutal"}, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/leaderboard?limit=x", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := env.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, string(data))
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		})
	}
}

func TestInvalidMiniGameKind(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(http.MethodPost, "/api/combat/start", map[string]string{"enemyId": "kappa"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env.tickUntil(combat.PhaseActionSelect)

	resp, _ = env.do(http.MethodPost, "/api/combat/select", map[string]string{"game": "sudoku"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, combat.PhaseActionSelect, env.state().Combat.Phase)
}

func TestUseItemOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(http.MethodPost, "/api/combat/start", map[string]string{"enemyId": "kappa"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env.tickUntil(combat.PhaseActionSelect)

	resp, data := env.do(http.MethodPost, "/api/combat/item", map[string]string{"itemId": "tea"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	v := env.view(data)
	assert.Equal(t, combat.PhaseEnemyTurn, v.Combat.Phase)
	assert.Zero(t, v.Profile.Items["tea"])

	env.tickUntil(combat.PhaseActionSelect)
	resp, _ = env.do(http.MethodPost, "/api/combat/item", map[string]string{"itemId": "tea"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "none left")
	resp, _ = env.do(http.MethodPost, "/api/combat/item", map[string]string{"itemId": "sake"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRawInputDrivesMenu(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(http.MethodPost, "/api/combat/start", map[string]string{"enemyId": "kappa"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env.tickUntil(combat.PhaseActionSelect)

	resp, data := env.do(http.MethodPost, "/api/input", map[string]string{"source": "keyboard", "code": "ArrowDown", "id": "k1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Consumed bool           `json:"consumed"`
		Action   string         `json:"action"`
		State    encounter.View `json:"state"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Consumed)
	require.NotNil(t, out.State.Menu)
	assert.Equal(t, 1, out.State.Menu.Cursor)

	// replayed event ids are dropped
	_, data = env.do(http.MethodPost, "/api/input", map[string]string{"source": "keyboard", "code": "ArrowDown", "id": "k1"})
	require.NoError(t, json.Unmarshal(data, &out))
	assert.False(t, out.Consumed)
	assert.Equal(t, 1, out.State.Menu.Cursor)
}

func TestDifficultySettings(t *testing.T) {
	env := newTestEnv(t)

	_, data := env.do(http.MethodGet, "/api/settings/difficulty", nil)
	assert.JSONEq(t, `{"difficulty":"medium"}`, string(data))

	resp, data := env.do(http.MethodPut, "/api/settings/difficulty", map[string]string{"difficulty": "Hard"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"difficulty":"hard"}`, string(data))

	_, data = env.do(http.MethodGet, "/api/settings/difficulty", nil)
	assert.JSONEq(t, `{"difficulty":"hard"}`, string(data))
}

func TestContentEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(http.MethodGet, "/api/enemies", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var enemies []combat.Enemy
	require.NoError(t, json.Unmarshal(data, &enemies))
	assert.Len(t, enemies, len(env.catalog.Enemies()))

	resp, data = env.do(http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `"tea":1`)

	resp, _ = env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFrameAndReport(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(http.MethodPost, "/api/combat/start", map[string]string{"enemyId": "kappa"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := env.do(http.MethodGet, "/api/combat/frame.png", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	resp, data = env.do(http.MethodGet, "/api/combat/report.pdf", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestSessionCookieIsStable(t *testing.T) {
	env := newTestEnv(t)
	first := env.state().SessionID
	second := env.state().SessionID
	assert.Equal(t, first, second)
	assert.Equal(t, 1, env.arena.Len())

	// a forged cookie gets a fresh session
	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/state", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "Zm9yZ2VkLnNpZw=="})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var v encounter.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.NotEqual(t, first, v.SessionID)
	assert.Equal(t, 2, env.arena.Len())
}
