package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/geb2701/storefront/pkg/errors"
	"github.com/geb2701/storefront/pkg/httputil"
)

// RateLimitConfig sets the token bucket applied to each session.
type RateLimitConfig struct {
	RPS   float64
	Burst int
	// Buckets idle longer than this are forgotten.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SessionLimiter hands out one token bucket per cart session.
type SessionLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     RateLimitConfig
	now     func() time.Time
}

// NewSessionLimiter creates a limiter. Call Run to evict idle buckets.
func NewSessionLimiter(cfg RateLimitConfig) *SessionLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &SessionLimiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Allow reports whether the session may make another request now.
func (l *SessionLimiter) Allow(sessionID string) bool {
	l.mu.Lock()
	b, ok := l.buckets[sessionID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.buckets[sessionID] = b
	}
	b.lastSeen = l.now()
	l.mu.Unlock()

	return b.limiter.Allow()
}

// Len returns the number of tracked sessions.
func (l *SessionLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Evict drops buckets not used within the idle TTL and returns how many
// were removed.
func (l *SessionLimiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.IdleTTL)
	n := 0
	for id, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, id)
			n++
		}
	}
	return n
}

// Run evicts idle buckets every IdleTTL until ctx is cancelled.
func (l *SessionLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.IdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Evict()
		}
	}
}

// RateLimit rejects requests with 429 once the session resolved by Session
// has spent its bucket. A non-positive RPS disables limiting.
func RateLimit(l *SessionLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || l.cfg.RPS <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := SessionIDFromContext(r.Context())
			if !l.Allow(id) {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("session_id", id),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				httputil.WriteError(w, r, apperrors.RateLimited("too many requests"), logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
