package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Buckets idle for longer than ttl
// are dropped by a sweep that runs at most once per ttl.
type Limiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	entries   map[string]*limBucket
	lastSweep time.Time
}

type limBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLimiter returns a Limiter allowing perSecond events with the given burst per key.
func NewLimiter(perSecond float64, burst int, ttl time.Duration) *Limiter {
	return &Limiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		ttl:       ttl,
		entries:   make(map[string]*limBucket),
		lastSweep: time.Now(),
	}
}

// Allow reports whether one more event for key fits its bucket.
func (m *Limiter) Allow(key string) bool {
	return m.allowAt(key, time.Now())
}

func (m *Limiter) allowAt(key string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Sub(m.lastSweep) > m.ttl {
		m.sweep(now)
	}
	b := m.entries[key]
	if b == nil {
		b = &limBucket{lim: rate.NewLimiter(m.limit, m.burst), lastSeen: now}
		m.entries[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// sweep drops idle buckets. m.mu must be held.
func (m *Limiter) sweep(now time.Time) {
	for k, v := range m.entries {
		if now.Sub(v.lastSeen) > m.ttl {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}

// RetryAfter is the number of whole seconds until one token is available again.
func (m *Limiter) RetryAfter() int {
	if m.limit <= 0 {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(m.limit))))
}

// RateLimit rejects requests with 429 once the caller address exhausts its
// bucket. It must run after CallerInfo.
func RateLimit(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := GetCallerFromContext(r.Context())
			if !l.Allow(caller.Address) {
				w.Header().Set("Retry-After", strconv.Itoa(l.RetryAfter()))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
