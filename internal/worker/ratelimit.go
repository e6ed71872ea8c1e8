package worker

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter is one client's token bucket.
type clientLimiter struct {
	lastSeen time.Time
	limiter  *rate.Limiter
}

// PerClientRateLimiter implements per-client rate limiting.
type PerClientRateLimiter struct {
	lastCleanup     time.Time
	now             func() time.Time
	clients         map[string]*clientLimiter
	rate            rate.Limit
	burst           int
	cleanupInterval time.Duration
	maxIdleTime     time.Duration
	rejected        int64
	mu              sync.Mutex
}

// NewPerClientRateLimiter creates a limiter allowing perSecond requests per
// client with the given burst.
func NewPerClientRateLimiter(perSecond float64, burst int) *PerClientRateLimiter {
	return &PerClientRateLimiter{
		rate:            rate.Limit(perSecond),
		burst:           burst,
		clients:         make(map[string]*clientLimiter),
		cleanupInterval: 5 * time.Minute,
		maxIdleTime:     10 * time.Minute,
		now:             time.Now,
		lastCleanup:     time.Now(),
	}
}

// Allow checks if a request from the given client should be allowed.
func (p *PerClientRateLimiter) Allow(clientKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastCleanup) > p.cleanupInterval {
		p.cleanupLocked(now)
	}

	c, ok := p.clients[clientKey]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(p.rate, p.burst)}
		p.clients[clientKey] = c
	}
	c.lastSeen = now

	if !c.limiter.AllowN(now, 1) {
		p.rejected++
		return false
	}
	return true
}

// cleanupLocked removes idle clients. Caller must hold p.mu.
func (p *PerClientRateLimiter) cleanupLocked(now time.Time) {
	for key, c := range p.clients {
		if now.Sub(c.lastSeen) > p.maxIdleTime {
			delete(p.clients, key)
		}
	}
	p.lastCleanup = now
}

// Stats returns aggregate statistics.
func (p *PerClientRateLimiter) Stats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{
		"rate":           float64(p.rate),
		"burst":          p.burst,
		"active_clients": len(p.clients),
		"total_rejected": p.rejected,
	}
}

// PerClientRateLimitMiddleware applies per-client rate limiting keyed by the
// RemoteAddr host (set from X-Real-IP by the RealIP middleware).
func PerClientRateLimitMiddleware(limiter *PerClientRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.RemoteAddr
			if host, _, err := net.SplitHostPort(clientKey); err == nil {
				clientKey = host
			}
			if !limiter.Allow(clientKey) {
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
