package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/encounter"
)

type wsFrame struct {
	Event string         `json:"event"`
	Data  encounter.View `json:"data"`
}

func (env *testEnv) dial(header http.Header) *websocket.Conn {
	env.t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(env.t, err)
	resp.Body.Close()
	env.t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads state frames until match accepts one
func readUntil(t *testing.T, conn *websocket.Conn, match func(encounter.View) bool) encounter.View {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		require.Equal(t, EventState, f.Event)
		if match(f.Data) {
			return f.Data
		}
	}
	t.Fatal("no matching frame")
	return encounter.View{}
}

func TestWebSocketPushesStateAndTakesInput(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(http.MethodPost, "/api/combat/start", map[string]string{"enemyId": "kappa"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env.tickUntil(combat.PhaseActionSelect)

	header := http.Header{}
	header.Set("Cookie", SessionCookieName+"="+env.cookies.Encode(env.sessionID()))
	conn := env.dial(header)

	v := readUntil(t, conn, func(v encounter.View) bool { return true })
	assert.Equal(t, env.sessionID(), v.SessionID)
	assert.Equal(t, combat.PhaseActionSelect, v.Combat.Phase)
	require.NotNil(t, v.Menu)
	assert.Equal(t, 0, v.Menu.Cursor)

	msg, err := json.Marshal(map[string]interface{}{
		"event": EventInput,
		"data":  map[string]string{"source": "keyboard", "code": "ArrowDown", "id": "ws-1"},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

	v = readUntil(t, conn, func(v encounter.View) bool { return v.Menu != nil && v.Menu.Cursor == 1 })
	assert.Equal(t, 1, v.Menu.Cursor)
	assert.Eventually(t, func() bool { return env.server.Hub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketCreatesSession(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(nil)

	v := readUntil(t, conn, func(v encounter.View) bool { return true })
	assert.NotEmpty(t, v.SessionID)
	assert.False(t, v.Combat.IsActive)
	assert.Equal(t, 1, env.arena.Len())
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHubStopClosesClients(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(nil)
	readUntil(t, conn, func(v encounter.View) bool { return true })

	env.server.Hub().Stop()
	<-env.server.Hub().Done()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, env.server.Hub().ClientCount())
}
