package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/creeyes/crmprueba/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Webhook rate limiter ──────────────────────────────────────────────────────

const purgeInterval = 5 * time.Minute

// rateEntry tracks request counts per client within a fixed window.
type rateEntry struct {
	count     int
	windowEnd time.Time
}

type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]*rateEntry
	nextPurge time.Time
}

// RateLimiter allows limit requests per window per client IP. Each call builds
// an independent limiter. Expired entries are purged lazily every few minutes.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return newRateLimiter(limit, window, time.Now).handle
}

func newRateLimiter(limit int, window time.Duration, now func() time.Time) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		entries: make(map[string]*rateEntry),
	}
}

func (l *rateLimiter) handle(c *gin.Context) {
	allowed, retryAt := l.allow(c.ClientIP())
	if !allowed {
		c.Header("Retry-After", retryAt.UTC().Format(http.TimeFormat))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
		return
	}
	c.Next()
}

func (l *rateLimiter) allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.After(l.nextPurge) {
		l.purge(now)
		l.nextPurge = now.Add(purgeInterval)
	}

	entry, ok := l.entries[key]
	if !ok || now.After(entry.windowEnd) {
		entry = &rateEntry{windowEnd: now.Add(l.window)}
		l.entries[key] = entry
	}
	entry.count++
	return entry.count <= l.limit, entry.windowEnd
}

func (l *rateLimiter) purge(now time.Time) {
	purged := 0
	for key, entry := range l.entries {
		if now.After(entry.windowEnd) {
			delete(l.entries, key)
			purged++
		}
	}
	if purged > 0 {
		log.Debug().Int("purged", purged).Int("remaining", len(l.entries)).Msg("rate_limiter: entries purged")
	}
}
