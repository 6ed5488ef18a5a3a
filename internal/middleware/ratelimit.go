package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/submitlink/internal/apperr"
)

// RealIP returns the client address: CF-Connecting-IP, then the first
// X-Forwarded-For hop, then RemoteAddr. Header values that do not parse as
// an IP are ignored.
func RealIP(r *http.Request) string {
	if ip := parseIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

// RateLimiter is an in-memory sliding-window limiter. Each key keeps the
// timestamps of its hits inside the current window.
type RateLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		hits: make(map[string][]time.Time),
		now:  time.Now,
	}
}

// Allow records a hit for key and reports whether it is within limit hits per
// window. When it is not, the second value is how long until the oldest hit
// leaves the window. Denied hits are not recorded.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := prune(rl.hits[key], now.Add(-window))
	if len(recent) >= limit {
		rl.hits[key] = recent
		return false, recent[0].Add(window).Sub(now)
	}
	rl.hits[key] = append(recent, now)
	return true, 0
}

// prune drops hits at or before cutoff. hits is in ascending order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// Cleanup forgets keys with no hits newer than maxAge.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxAge)
	for key, hits := range rl.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(rl.hits, key)
		}
	}
}

// ByIP keys requests by client address and route pattern, so each route
// wrapped with RateLimit has its own budget per client.
func ByIP(r *http.Request) string {
	return RealIP(r) + " " + r.Pattern
}

// RateLimit rejects requests over limit per window with RATE_LIMITED and a
// Retry-After header.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, retry := limiter.Allow(keyFunc(r), limit, window); !ok {
				apperr.Write(w, apperr.RateLimited(apperr.CodeRateLimited, "too many requests", retry))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
