package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/config"
	"kotoba-quest/internal/encounter"
	"kotoba-quest/internal/eventlog"
)

// Metrics with bounded cardinality (no per-session or per-enemy labels)
var (
	// Arena metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent ticking every live encounter",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	encounterCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_encounters",
		Help: "Current number of live encounter sessions",
	})

	// Combat metrics
	combatsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "combat_started_total",
		Help: "Combats started",
	}, []string{"kind"}) // "story" or "random"

	combatsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "combat_ended_total",
		Help: "Combats ended by outcome",
	}, []string{"outcome"}) // victory, defeat, abort, retry

	miniGamesGraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minigame_graded_total",
		Help: "Mini-games graded by kind, tier and weak point hit",
	}, []string{"kind", "tier", "weak"})

	damageDealt = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "combat_damage",
		Help:    "Damage per hit",
		Buckets: []float64{0, 5, 10, 15, 20, 25, 30, 40, 60, 100},
	}, []string{"direction"}) // "dealt" or "taken"

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_duration_seconds",
		Help:    "Time spent rendering a frame or report",
		Buckets: []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.25},
	})

	// Event log metrics
	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_records",
		Help: "Records accepted by the combat event log",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_dropped",
		Help: "Records dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // rate_limit, origin, ws_total_limit, ws_ip_limit, ws_input

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "WebSocket messages by direction",
	}, []string{"direction"}) // "out" or "in"
)

// PromMetrics reports encounter activity to Prometheus
type PromMetrics struct{}

var _ encounter.Metrics = PromMetrics{}

func (m PromMetrics) CombatStarted(_ string, random bool) {
	kind := "story"
	if random {
		kind = "random"
	}
	combatsStarted.WithLabelValues(kind).Inc()
}

func (m PromMetrics) CombatEnded(outcome string) {
	combatsEnded.WithLabelValues(outcome).Inc()
}

func (m PromMetrics) MiniGameGraded(kind combat.MiniGameKind, tier combat.Tier, weak bool) {
	w := "false"
	if weak {
		w = "true"
	}
	miniGamesGraded.WithLabelValues(string(kind), string(tier), w).Inc()
}

func (m PromMetrics) Damage(direction string, amount int) {
	damageDealt.WithLabelValues(direction).Observe(float64(amount))
}

func (m PromMetrics) ArenaTick(d time.Duration, encounters int) {
	tickDuration.Observe(d.Seconds())
	encounterCount.Set(float64(encounters))
}

// RecordRender records render timing for metrics
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// UpdateEventLogStats copies the event log counters into gauges
func UpdateEventLogStats(el *eventlog.EventLog) {
	if el == nil {
		return
	}
	stats := el.Stats()
	if total, ok := stats["total"].(uint64); ok {
		eventLogTotal.Set(float64(total))
	}
	eventLogDropped.Set(float64(el.Dropped()))
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts one WebSocket message in direction "in" or "out"
func IncrementWSMessages(direction string) {
	wsMessagesTotal.WithLabelValues(direction).Inc()
}

// requestMetrics records latency by chi route pattern
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// DebugServer serves pprof, /metrics and /health on a private address
type DebugServer struct {
	srv *http.Server
	log *zap.Logger
}

// StartDebugServer starts the internal observability server. It binds to
// loopback unless ALLOW_DEBUG_EXTERNAL=true. Returns nil when disabled.
func StartDebugServer(cfg config.DebugConfig, logger *zap.Logger) (*DebugServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("debug server disabled")
		return nil, nil
	}

	addr := cfg.Addr
	if !isLoopback(addr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		logger.Warn("debug server forced to localhost", zap.String("requested", addr))
		addr = "127.0.0.1:6060"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	d := &DebugServer{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log: logger,
	}
	go func() {
		if err := d.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("debug server error", zap.Error(err))
		}
	}()
	logger.Info("debug server started",
		zap.String("pprof", "http://"+addr+"/debug/pprof/"),
		zap.String("metrics", "http://"+addr+"/metrics"))
	return d, nil
}

// Shutdown stops the debug server
func (d *DebugServer) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	return d.srv.Shutdown(ctx)
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
