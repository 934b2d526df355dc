package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/content"
	"kotoba-quest/internal/encounter"
	"kotoba-quest/internal/leaderboard"
)

// ArenaInterface is the session registry the API drives.
// *encounter.Arena implements it.
type ArenaInterface interface {
	Get(ctx context.Context, id string) (*encounter.Encounter, error)
	GetOrCreate(ctx context.Context, id string) (*encounter.Encounter, bool, error)
	Len() int
}

// DifficultySettings is the runtime difficulty switch
type DifficultySettings interface {
	Difficulty() combat.Difficulty
	SetDifficulty(name string) (combat.Difficulty, error)
}

// Rankings is the read side of the experience leaderboard
type Rankings interface {
	Top(n int) []leaderboard.Entry
	Rank(id string) int
	Len() int
}

// FrameRenderer draws an encounter view as a PNG
type FrameRenderer interface {
	PNG(v encounter.View) ([]byte, error)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Arena:    arena,
//	    Catalog:  catalog,
//	    Settings: config.NewSettings(combat.DifficultyMedium),
//	    Cookies:  api.NewCookies("test-secret", nil),
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	Arena    ArenaInterface     // required
	Catalog  *content.Catalog   // required
	Settings DifficultySettings // required
	Cookies  *Cookies           // required

	Rankings Rankings      // optional, /api/leaderboard is empty without it
	Renderer FrameRenderer // optional, frame.png returns 503 without it
	// ReportFont is a UTF-8 TTF for the PDF report. Empty uses Helvetica.
	ReportFont string

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created from RateLimitConfig.
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins lists allowed browser origins. Nil allows localhost only.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool

	Logger *zap.Logger
}

// routerHandlers holds the dependencies the handlers close over
type routerHandlers struct {
	arena    ArenaInterface
	catalog  *content.Catalog
	settings DifficultySettings
	cookies  *Cookies
	rankings Rankings
	renderer FrameRenderer
	font     string
	log      *zap.Logger
}

// DefaultCORSOrigins is used when RouterConfig.CORSOrigins is nil
var DefaultCORSOrigins = []string{
	"http://localhost:*",
	"http://127.0.0.1:*",
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// NewRouter is pure apart from the rate limiter cleanup goroutine when no
// RateLimiter is passed: no listeners are opened and no encounter is ticked,
// so it is safe to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &routerHandlers{
		arena:    cfg.Arena,
		catalog:  cfg.Catalog,
		settings: cfg.Settings,
		cookies:  cfg.Cookies,
		rankings: cfg.Rankings,
		renderer: cfg.Renderer,
		font:     cfg.ReportFont,
		log:      logger,
	}

	r.Route("/api", func(r chi.Router) {
		// Shared content and settings
		r.Get("/enemies", h.handleGetEnemies)
		r.Get("/items", h.handleGetItems)
		r.Get("/leaderboard", h.handleGetLeaderboard)
		r.Get("/settings/difficulty", h.handleGetDifficulty)
		r.Put("/settings/difficulty", h.handlePutDifficulty)

		// Per-session routes
		r.Group(func(r chi.Router) {
			r.Use(h.withEncounter)

			r.Get("/state", h.handleGetState)
			r.Get("/profile", h.handleGetProfile)
			r.Post("/input", h.handleInput)

			r.Route("/combat", func(r chi.Router) {
				r.Post("/start", h.handleCombatStart)
				r.Post("/select", h.handleCombatSelect)
				r.Post("/item", h.handleCombatItem)
				r.Post("/continue", h.handleCombatContinue)
				r.Post("/retry", h.handleCombatRetry)
				r.Post("/giveup", h.handleCombatGiveUp)
				r.Post("/abort", h.handleCombatAbort)
				r.Get("/frame.png", h.handleFrame)
				r.Get("/report.pdf", h.handleReport)
			})

			r.Route("/minigame", func(r chi.Router) {
				r.Post("/quiz", h.handleQuizAnswer)
				r.Post("/match", h.handleMatchPick)
				r.Post("/unscramble", h.handleTilePlace)
				r.Post("/undo", h.handleTileUndo)
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"ok": true, "sessions": cfg.Arena.Len()})
	})

	return r
}
