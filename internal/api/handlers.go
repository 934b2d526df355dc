package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/content"
	"kotoba-quest/internal/encounter"
	"kotoba-quest/internal/input"
	"kotoba-quest/internal/minigame"
	"kotoba-quest/internal/report"
)

const maxBodyBytes = 4 << 10

// =============================================================================
// CONTENT & SETTINGS
// =============================================================================

func (h *routerHandlers) handleGetEnemies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.catalog.Enemies())
}

func (h *routerHandlers) handleGetItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.catalog.Items())
}

type leaderboardRow struct {
	Rank  int     `json:"rank"`
	Name  string  `json:"name"`
	XP    float64 `json:"xp"`
	Level int     `json:"level"`
	You   bool    `json:"you,omitempty"`
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, 100)
	}

	resp := map[string]interface{}{"entries": []leaderboardRow{}, "total": 0}
	if h.rankings == nil {
		writeJSON(w, resp)
		return
	}

	self := h.cookies.SessionID(r)
	rows := make([]leaderboardRow, 0, limit)
	for _, e := range h.rankings.Top(limit) {
		rows = append(rows, leaderboardRow{
			Rank:  e.Rank,
			Name:  displayName(e.ID),
			XP:    e.Score,
			Level: encounter.LevelForXP(int(e.Score)),
			You:   e.ID == self,
		})
	}
	resp["entries"] = rows
	resp["total"] = h.rankings.Len()
	if self != "" {
		if rank := h.rankings.Rank(self); rank > 0 {
			resp["yourRank"] = rank
		}
	}
	writeJSON(w, resp)
}

// displayName is a stable public handle that does not reveal the session id
func displayName(id string) string {
	if len(id) > 6 {
		id = id[:6]
	}
	return "traveler-" + id
}

func (h *routerHandlers) handleGetDifficulty(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"difficulty": string(h.settings.Difficulty())})
}

func (h *routerHandlers) handlePutDifficulty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Difficulty string `json:"difficulty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.settings.SetDifficulty(req.Difficulty)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Info("difficulty changed", zap.String("difficulty", string(d)))
	writeJSON(w, map[string]string{"difficulty": string(d)})
}

// =============================================================================
// SESSION STATE
// =============================================================================

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, encounterFrom(r).View())
}

func (h *routerHandlers) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	e := encounterFrom(r)
	resp := map[string]interface{}{"profile": e.Profile()}
	if h.rankings != nil {
		if rank := h.rankings.Rank(e.ID()); rank > 0 {
			resp["rank"] = rank
		}
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleInput(w http.ResponseWriter, r *http.Request) {
	var raw input.RawEvent
	if !decodeJSON(w, r, &raw) {
		return
	}
	e := encounterFrom(r)
	act, used := e.HandleInput(raw)
	resp := map[string]interface{}{"consumed": used, "state": e.View()}
	if used {
		resp["action"] = act.String()
	}
	writeJSON(w, resp)
}

// =============================================================================
// COMBAT
// =============================================================================

func (h *routerHandlers) handleCombatStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EnemyID string `json:"enemyId"`
		Random  bool   `json:"random"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EnemyID == "" && !req.Random {
		writeError(w, "enemyId is required", http.StatusBadRequest)
		return
	}
	h.respond(w, r, func(e *encounter.Encounter) error {
		return e.StartCombat(req.EnemyID, req.Random)
	})
}

func (h *routerHandlers) handleCombatSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Game combat.MiniGameKind `json:"game"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r, func(e *encounter.Encounter) error {
		return e.SelectMiniGame(req.Game)
	})
}

func (h *routerHandlers) handleCombatItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID string `json:"itemId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r, func(e *encounter.Encounter) error {
		return e.UseItem(req.ItemID)
	})
}

func (h *routerHandlers) handleCombatContinue(w http.ResponseWriter, r *http.Request) {
	e := encounterFrom(r)
	reward, err := e.Continue()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"reward": reward, "state": e.View()})
}

func (h *routerHandlers) handleCombatRetry(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, (*encounter.Encounter).Retry)
}

func (h *routerHandlers) handleCombatGiveUp(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, (*encounter.Encounter).GiveUp)
}

func (h *routerHandlers) handleCombatAbort(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, (*encounter.Encounter).Abort)
}

func (h *routerHandlers) handleFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "frame rendering disabled", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()
	png, err := h.renderer.PNG(encounterFrom(r).View())
	RecordRender(time.Since(start))
	if err != nil {
		h.log.Error("frame render failed", zap.Error(err))
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (h *routerHandlers) handleReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	view := encounterFrom(r).View()
	opts := report.Options{FontPath: h.font}
	if h.renderer != nil && view.Combat.IsActive {
		if png, err := h.renderer.PNG(view); err == nil {
			opts.Frame = png
		}
	}
	pdf, err := report.Generate(view, opts)
	RecordRender(time.Since(start))
	if err != nil {
		h.log.Error("report failed", zap.Error(err))
		writeError(w, "report failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="battle-report.pdf"`)
	_, _ = w.Write(pdf)
}

// =============================================================================
// MINI-GAMES
// =============================================================================

func (h *routerHandlers) handleQuizAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Choice int `json:"choice"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r, func(e *encounter.Encounter) error {
		return e.AnswerQuiz(req.Choice)
	})
}

func (h *routerHandlers) handleMatchPick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Side  minigame.Side `json:"side"`
		Index int           `json:"index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r, func(e *encounter.Encounter) error {
		return e.PickMatch(req.Side, req.Index)
	})
}

func (h *routerHandlers) handleTilePlace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tile int `json:"tile"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, r, func(e *encounter.Encounter) error {
		return e.PlaceTile(req.Tile)
	})
}

func (h *routerHandlers) handleTileUndo(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, (*encounter.Encounter).UndoTile)
}

// =============================================================================
// HELPERS
// =============================================================================

// respond runs op against the caller's encounter and writes the new view
func (h *routerHandlers) respond(w http.ResponseWriter, r *http.Request, op func(*encounter.Encounter) error) {
	e := encounterFrom(r)
	if err := op(e); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, e.View())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, combat.ErrInvalidPhase),
		errors.Is(err, combat.ErrStaleToken),
		errors.Is(err, combat.ErrImpactPending),
		errors.Is(err, combat.ErrNoCombat),
		errors.Is(err, encounter.ErrNoMiniGame),
		errors.Is(err, encounter.ErrNoItem),
		errors.Is(err, minigame.ErrFinished):
		return http.StatusConflict
	case errors.Is(err, content.ErrUnknownEnemy),
		errors.Is(err, content.ErrUnknownItem),
		errors.Is(err, encounter.ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, combat.ErrInvalidMiniGame),
		errors.Is(err, combat.ErrInvalidEnemy),
		errors.Is(err, combat.ErrInvalidTier),
		errors.Is(err, minigame.ErrBadMove):
		return http.StatusBadRequest
	case errors.Is(err, encounter.ErrArenaFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, msg, code)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
