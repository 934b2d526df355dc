package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client HTTP limiter
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration // idle clients are forgotten after twice this
}

// DefaultRateLimitConfig is used when the router gets no config
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 20,
	Burst:             40,
	CleanupInterval:   5 * time.Minute,
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter gives every client IP its own token bucket
type IPRateLimiter struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	visitors map[string]*visitor

	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter creates a limiter and starts forgetting idle clients
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{
		cfg:      cfg,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the sweep goroutine
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow takes one token from ip's bucket
func (rl *IPRateLimiter) Allow(ip string) bool {
	now := time.Now()
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// Middleware answers 429 once a client runs out of tokens
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			writeError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.sweep(now.Add(-2 * rl.cfg.CleanupInterval))
		}
	}
}

// sweep forgets clients not seen since cutoff
func (rl *IPRateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *IPRateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the socket address. Only trust the headers behind a proxy that sets them.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// connLimiter caps concurrent WebSocket connections per IP
type connLimiter struct {
	max  int
	mu   sync.Mutex
	open map[string]int
}

func newConnLimiter(perIP int) *connLimiter {
	return &connLimiter{max: perIP, open: make(map[string]int)}
}

// acquire reserves a slot for ip, or reports false when ip is at the cap
func (l *connLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.open[ip] >= l.max {
		return false
	}
	l.open[ip]++
	return true
}

// release frees a slot taken by acquire
func (l *connLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch n := l.open[ip]; {
	case n > 1:
		l.open[ip] = n - 1
	case n == 1:
		delete(l.open, ip)
	}
}

func (l *connLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[ip]
}

// originChecker matches request origins against CORS-style patterns.
// A single '*' in a pattern matches any run of characters.
type originChecker struct {
	patterns []string
}

func newOriginChecker(patterns []string) originChecker {
	return originChecker{patterns: patterns}
}

// Allowed reports whether origin may open a WebSocket. Requests without an
// Origin header come from non-browser clients and are allowed.
func (o originChecker) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, p := range o.patterns {
		if p == "*" || p == origin {
			return true
		}
		if i := strings.IndexByte(p, '*'); i >= 0 {
			prefix, suffix := p[:i], p[i+1:]
			if len(origin) >= len(prefix)+len(suffix) &&
				strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
				return true
			}
		}
	}
	return false
}
