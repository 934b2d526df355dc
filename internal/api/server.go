package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub.
type Server struct {
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	http        *http.Server
	log         *zap.Logger
}

// NewServer builds the router and hub.
//
// Background workers do NOT start until Start() is called, so the server
// can be constructed in tests and driven through Router().
func NewServer(cfg RouterConfig, hub HubConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RateLimiter == nil {
		rlc := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlc = *cfg.RateLimitConfig
		}
		cfg.RateLimiter = NewIPRateLimiter(rlc)
	}
	if hub.Origins == nil {
		hub.Origins = cfg.CORSOrigins
	}

	s := &Server{
		rateLimiter: cfg.RateLimiter,
		wsHub:       NewWebSocketHub(hub, cfg.Arena, cfg.Cookies, cfg.Logger),
		log:         cfg.Logger,
	}
	s.router = NewRouter(cfg)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
	return s
}

// Start runs the hub and serves HTTP on addr until Shutdown.
// It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("API server starting", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, closes WebSockets and stops workers
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	return err
}
