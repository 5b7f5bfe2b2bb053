package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimit allows limit requests per caller in each fixed window of length
// per. Authenticated callers are keyed by user id, everyone else by client
// IP. A non-positive limit disables limiting.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	wl := newWindowLimiter(limit, per)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if wait, ok := wl.allow(rateKey(r), time.Now()); !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate_limited", "message": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateKey(r *http.Request) string {
	if id := UserIDFromContext(r.Context()); id != "" {
		return "user:" + id
	}
	return "ip:" + clientIP(r)
}

type window struct {
	used    int
	resetAt time.Time
}

type windowLimiter struct {
	mu      sync.Mutex
	limit   int
	per     time.Duration
	windows map[string]*window
	sweepAt time.Time
}

func newWindowLimiter(limit int, per time.Duration) *windowLimiter {
	return &windowLimiter{limit: limit, per: per, windows: make(map[string]*window)}
}

// allow spends one request from key's window. When the window is exhausted it
// reports how long until it resets.
func (l *windowLimiter) allow(key string, now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !now.Before(l.sweepAt) {
		for k, win := range l.windows {
			if !now.Before(win.resetAt) {
				delete(l.windows, k)
			}
		}
		l.sweepAt = now.Add(l.per)
	}

	win, ok := l.windows[key]
	if !ok || !now.Before(win.resetAt) {
		win = &window{resetAt: now.Add(l.per)}
		l.windows[key] = win
	}
	if win.used >= l.limit {
		return win.resetAt.Sub(now), false
	}
	win.used++
	return 0, true
}
