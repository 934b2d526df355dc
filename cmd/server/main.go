package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kotoba-quest/internal/api"
	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/config"
	"kotoba-quest/internal/content"
	"kotoba-quest/internal/encounter"
	"kotoba-quest/internal/eventlog"
	"kotoba-quest/internal/leaderboard"
	"kotoba-quest/internal/logging"
	"kotoba-quest/internal/render"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		_ = godotenv.Load(".env")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(appConfig.Logging)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	serverCfg := appConfig.Server
	combatCfg := appConfig.Combat

	catalog, err := content.Load(appConfig.Storage.ContentDir)
	if err != nil {
		logger.Fatal("content load failed", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("enemies", len(catalog.Enemies())),
		zap.Int("words", len(catalog.Words())),
		zap.Int("items", len(catalog.Items())))

	// Start event log
	var events *eventlog.EventLog
	if path := appConfig.Storage.EventLogPath; path != "" {
		events = eventlog.New(logger)
		if err := events.Start(path); err != nil {
			logger.Warn("event log disabled", zap.Error(err))
			events = nil
		} else {
			logger.Info("event log started", zap.String("path", path))
		}
	}

	difficulty, _ := combat.ParseDifficulty(combatCfg.Difficulty) // checked by Validate
	settings := config.NewSettings(difficulty)
	board := leaderboard.New()

	arena := encounter.NewArena(encounter.ArenaConfig{
		TickRate:      serverCfg.TickRate,
		MaxEncounters: encounter.DefaultArenaConfig().MaxEncounters,
		IdleTimeout:   encounter.DefaultArenaConfig().IdleTimeout,
		StartLevel:    combatCfg.PlayerLevel,
		StartingYen:   combatCfg.StartingYen,
		StartingItems: combatCfg.StartingItems,
	}, encounter.Deps{
		Catalog:  catalog,
		Settings: settings,
		EventLog: events,
		Metrics:  api.PromMetrics{},
		Ranker:   board,
		Logger:   logger,
	}, nil)

	routerCfg := api.RouterConfig{
		Arena:      arena,
		Catalog:    catalog,
		Settings:   settings,
		Cookies:    api.NewCookies(serverCfg.SessionSecret, logger),
		Rankings:   board,
		ReportFont: appConfig.Render.FontPath,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: serverCfg.RequestsPerSec,
			Burst:             serverCfg.Burst,
		},
		CORSOrigins: serverCfg.CORSOrigins,
		Logger:      logger,
	}
	if renderer, err := render.New(appConfig.Render, logger); err != nil {
		logger.Warn("frame rendering disabled", zap.Error(err))
	} else {
		routerCfg.Renderer = renderer
	}
	server := api.NewServer(routerCfg, api.DefaultHubConfig())

	debug, err := api.StartDebugServer(appConfig.Debug, logger)
	if err != nil {
		logger.Warn("debug server disabled", zap.Error(err))
	}

	arena.Start()
	logger.Info("arena started",
		zap.Int("tick_rate", serverCfg.TickRate),
		zap.String("difficulty", string(difficulty)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if events != nil {
		go reportEventLog(ctx, events)
	}

	// Start API server in goroutine
	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		logger.Info("API server listening", zap.String("url", "http://localhost"+addr))
		if err := server.Start(addr); err != nil {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	_ = debug.Shutdown(shutdownCtx)
	arena.Stop()
	if events != nil {
		events.Stop()
	}
	logger.Info("goodbye")
}

// reportEventLog samples event log counters into Prometheus
func reportEventLog(ctx context.Context, events *eventlog.EventLog) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			api.UpdateEventLogStats(events)
		}
	}
}
