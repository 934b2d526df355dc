package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/content"
	"kotoba-quest/internal/encounter"
	"kotoba-quest/internal/minigame"
)

func TestIPRateLimiterMiddleware(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	defer rl.Stop()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))

	// other clients have their own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 2, rl.tracked())
}

func TestIPRateLimiterSweepsIdleClients(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.Equal(t, 1, rl.tracked())

	rl.sweep(time.Now().Add(-time.Minute))
	assert.Equal(t, 1, rl.tracked(), "recently seen clients stay")

	rl.sweep(time.Now().Add(time.Minute))
	assert.Equal(t, 0, rl.tracked())
	assert.True(t, rl.Allow("10.0.0.1"), "a forgotten client starts with a full bucket")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote addr", nil, "192.168.1.5:9999", "192.168.1.5"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": " 5.6.7.8 "}, "10.0.0.1:1", "5.6.7.8"},
		{"no port", nil, "unix", "unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestConnLimiter(t *testing.T) {
	l := newConnLimiter(2)
	assert.True(t, l.acquire("a"))
	assert.True(t, l.acquire("a"))
	assert.False(t, l.acquire("a"))
	assert.True(t, l.acquire("b"))
	assert.Equal(t, 2, l.count("a"))

	l.release("a")
	assert.Equal(t, 1, l.count("a"))
	assert.True(t, l.acquire("a"))

	l.release("nobody")
	assert.Equal(t, 0, l.count("nobody"))
}

func TestOriginChecker(t *testing.T) {
	oc := newOriginChecker(DefaultCORSOrigins)
	assert.True(t, oc.Allowed(""))
	assert.True(t, oc.Allowed("http://localhost:5173"))
	assert.True(t, oc.Allowed("http://127.0.0.1:8080"))
	assert.False(t, oc.Allowed("https://localhost:5173"))
	assert.False(t, oc.Allowed("http://evil.example"))

	assert.True(t, newOriginChecker([]string{"*"}).Allowed("https://anything.example"))
	assert.True(t, newOriginChecker([]string{"https://*.kotoba.quest"}).Allowed("https://play.kotoba.quest"))
}

func TestCookieRoundTrip(t *testing.T) {
	c := NewCookies("secret", nil)
	id, err := c.Decode(c.Encode("abc123"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = NewCookies("other", nil).Decode(c.Encode("abc123"))
	assert.Error(t, err, "signature from another key")
	_, err = c.Decode("%%%")
	assert.Error(t, err)

	rec := httptest.NewRecorder()
	c.Set(rec, "abc123")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(ck)
	}
	assert.Equal(t, "abc123", c.SessionID(req))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", combat.ErrInvalidPhase), http.StatusConflict},
		{combat.ErrStaleToken, http.StatusConflict},
		{combat.ErrNoCombat, http.StatusConflict},
		{encounter.ErrNoMiniGame, http.StatusConflict},
		{minigame.ErrFinished, http.StatusConflict},
		{content.ErrUnknownEnemy, http.StatusNotFound},
		{content.ErrUnknownItem, http.StatusNotFound},
		{encounter.ErrUnknownSession, http.StatusNotFound},
		{combat.ErrInvalidMiniGame, http.StatusBadRequest},
		{minigame.ErrBadMove, http.StatusBadRequest},
		{encounter.ErrArenaFull, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
