package api

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"kotoba-quest/internal/encounter"
)

const (
	// SessionCookieName carries the signed encounter session id
	SessionCookieName = "kotoba_session"

	// SessionDuration is the cookie lifetime
	SessionDuration = 7 * 24 * time.Hour

	// CookieSecure should be true when served over HTTPS
	CookieSecure = false
)

var errBadCookie = errors.New("invalid session cookie")

// Cookies signs and verifies session cookies with HMAC-SHA256
type Cookies struct {
	secretKey []byte
	secure    bool
}

// NewCookies creates a signer. An empty secret generates a random key, so
// cookies do not survive a restart.
func NewCookies(secret string, logger *zap.Logger) *Cookies {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("api: no entropy for session secret: " + err.Error())
		}
		if logger != nil {
			logger.Warn("SESSION_SECRET not set, sessions reset on restart")
		}
	}
	return &Cookies{secretKey: key, secure: CookieSecure}
}

// Encode returns the signed cookie value for sessionID
func (c *Cookies) Encode(sessionID string) string {
	return base64.URLEncoding.EncodeToString([]byte(sessionID + "." + c.sign(sessionID)))
}

// Decode verifies a cookie value and returns its session id
func (c *Cookies) Decode(value string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return "", errBadCookie
	}
	id, sig, ok := strings.Cut(string(decoded), ".")
	if !ok || id == "" {
		return "", errBadCookie
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(id))) {
		return "", errBadCookie
	}
	return id, nil
}

func (c *Cookies) sign(id string) string {
	mac := hmac.New(sha256.New, c.secretKey)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

// SessionID returns the verified session id of r, or "" if none
func (c *Cookies) SessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	id, err := c.Decode(cookie.Value)
	if err != nil {
		return ""
	}
	return id
}

// Set writes the session cookie
func (c *Cookies) Set(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    c.Encode(sessionID),
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear removes the session cookie
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type ctxKey struct{}

// withEncounter resolves the caller's encounter from the session cookie,
// creating a session for new or unknown cookies.
func (h *routerHandlers) withEncounter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e, created, err := h.arena.GetOrCreate(r.Context(), h.cookies.SessionID(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		if created {
			h.cookies.Set(w, e.ID())
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, e)))
	})
}

func encounterFrom(r *http.Request) *encounter.Encounter {
	e, _ := r.Context().Value(ctxKey{}).(*encounter.Encounter)
	return e
}
