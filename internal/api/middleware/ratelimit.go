package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/enot3481-eng/messenger-app/internal/metrics"
)

// RateLimiter applies a per-client-IP token bucket to the HTTP
// surface. The relay keeps no server-side storage, so the limiter is
// purely in-memory; stale client entries are swept periodically.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientEntry
	logger  zerolog.Logger
	stopCh  chan struct{}
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second
// with the given burst per client IP.
func NewRateLimiter(rps float64, burst int, logger zerolog.Logger) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientEntry),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			rl.mu.Lock()
			for ip, e := range rl.clients {
				if e.lastSeen.Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine (useful for tests).
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Allow reports whether a request from ip is within budget.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	e, ok := rl.clients[ip]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = e
	}
	e.lastSeen = time.Now()
	rl.mu.Unlock()

	return e.limiter.Allow()
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)

		if !rl.Allow(ip) {
			metrics.RateLimitHits.WithLabelValues(normalizePath(r.URL.Path)).Inc()
			rl.logger.Warn().
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("rate limit exceeded")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
