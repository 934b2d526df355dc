package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"kotoba-quest/internal/encounter"
	"kotoba-quest/internal/input"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 2000

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	// EventState is pushed whenever the session's view changes
	EventState = "combat:state"

	// EventInput carries a raw device event from the client
	EventInput = "input"

	wsWriteTimeout = 2 * time.Second
	wsReadLimit    = 1024
)

// HubConfig tunes the WebSocket hub
type HubConfig struct {
	PushInterval time.Duration // how often sessions are checked for changes
	InputRate    float64       // input frames per second per connection
	InputBurst   int
	Origins      []string // allowed Origin patterns, nil uses DefaultCORSOrigins
}

// DefaultHubConfig returns production defaults
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PushInterval: 50 * time.Millisecond,
		InputRate:    30,
		InputBurst:   30,
	}
}

type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// wsClient is one connection bound to one encounter session
type wsClient struct {
	conn    *websocket.Conn
	ip      string
	enc     *encounter.Encounter
	limiter *rate.Limiter

	// owned by the hub goroutine
	version uint64
	sent    bool
}

// WebSocketHub pushes per-session state and takes raw input. All writes
// happen on the Run goroutine; each connection has its own reader.
type WebSocketHub struct {
	cfg      HubConfig
	arena    ArenaInterface
	cookies  *Cookies
	upgrader websocket.Upgrader
	log      *zap.Logger

	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex

	wsLimiter *connLimiter
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

// NewWebSocketHub creates a hub. Call Run to start pushing.
func NewWebSocketHub(cfg HubConfig, arena ArenaInterface, cookies *Cookies, logger *zap.Logger) *WebSocketHub {
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = DefaultHubConfig().PushInterval
	}
	if cfg.InputRate <= 0 {
		cfg.InputRate, cfg.InputBurst = DefaultHubConfig().InputRate, DefaultHubConfig().InputBurst
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.Origins
	if origins == nil {
		origins = DefaultCORSOrigins
	}
	checker := newOriginChecker(origins)

	h := &WebSocketHub{
		cfg:        cfg,
		arena:      arena,
		cookies:    cookies,
		log:        logger,
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		wsLimiter:  newConnLimiter(MaxWSConnectionsPerIP),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if checker.Allowed(origin) {
				return true
			}
			logger.Warn("websocket origin rejected", zap.String("origin", origin))
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run registers clients and pushes changed views until Stop
func (h *WebSocketHub) Run() {
	defer close(h.done)
	ticker := time.NewTicker(h.cfg.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("websocket connected", zap.String("ip", c.ip), zap.Int("clients", count))
			UpdateWSConnections(count)
			h.push(c)

		case c := <-h.unregister:
			h.remove(c)

		case <-ticker.C:
			h.mu.RLock()
			clients := make([]*wsClient, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()
			for _, c := range clients {
				h.push(c)
			}

		case <-h.stop:
			h.mu.Lock()
			for c := range h.clients {
				h.wsLimiter.release(c.ip)
				_ = c.conn.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return
		}
	}
}

// Stop closes every connection and ends Run
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Done is closed when Run has returned
func (h *WebSocketHub) Done() <-chan struct{} {
	return h.done
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// push sends the session view if it changed since the last push
func (h *WebSocketHub) push(c *wsClient) {
	v := c.enc.Version()
	if c.sent && v == c.version {
		return
	}
	data, err := json.Marshal(map[string]interface{}{
		"event": EventState,
		"data":  c.enc.View(),
	})
	if err != nil {
		h.log.Error("websocket marshal failed", zap.Error(err))
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.remove(c)
		return
	}
	c.version, c.sent = v, true
	IncrementWSMessages("out")
}

func (h *WebSocketHub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.wsLimiter.release(c.ip)
	_ = c.conn.Close()
	h.log.Debug("websocket disconnected", zap.Int("clients", count))
	UpdateWSConnections(count)
}

// HandleWebSocket upgrades the request and binds it to the caller's session
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		h.log.Warn("websocket rejected: total limit reached", zap.Int("clients", total))
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.acquire(ip) {
		h.log.Warn("websocket rejected: per-IP limit reached", zap.String("ip", ip))
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	e, created, err := h.arena.GetOrCreate(r.Context(), h.cookies.SessionID(r))
	if err != nil {
		h.wsLimiter.release(ip)
		writeErr(w, err)
		return
	}
	header := http.Header{}
	if created {
		rec := &cookieRecorder{header: header}
		h.cookies.Set(rec, e.ID())
	}

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		h.wsLimiter.release(ip)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	c := &wsClient{
		conn:    conn,
		ip:      ip,
		enc:     e,
		limiter: rate.NewLimiter(rate.Limit(h.cfg.InputRate), h.cfg.InputBurst),
	}
	select {
	case h.register <- c:
	case <-h.stop:
		h.wsLimiter.release(ip)
		_ = conn.Close()
		return
	}
	go h.readLoop(c)
}

// readLoop feeds raw input frames into the session's arbiter
func (h *WebSocketHub) readLoop(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stop:
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		IncrementWSMessages("in")

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event != EventInput {
			continue
		}
		if !c.limiter.Allow() {
			RecordConnectionRejected("ws_input")
			continue
		}
		var raw input.RawEvent
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			continue
		}
		c.enc.HandleInput(raw)
	}
}

// cookieRecorder lets http.SetCookie write into the upgrade response header
type cookieRecorder struct {
	header http.Header
}

func (c *cookieRecorder) Header() http.Header         { return c.header }
func (c *cookieRecorder) Write(b []byte) (int, error) { return len(b), nil }
func (c *cookieRecorder) WriteHeader(int)             {}
