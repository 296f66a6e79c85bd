package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter is an in-process fixed-window limiter for single-instance
// deployments. Requests are limited per tenant when the business header is
// present, per client IP otherwise.
type RateLimiter struct {
	limit   int
	window  time.Duration
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, windowDur time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  windowDur,
		windows: map[string]*window{},
	}
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(rateKey(r)) {
				w.Header().Set("Retry-After", retryAfter(rl.window))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	// Evict expired windows so the map stays bounded by active tenants.
	for k, v := range rl.windows {
		if now.After(v.resetAt) {
			delete(rl.windows, k)
		}
	}

	v := rl.windows[key]
	if v == nil {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(rl.window)}
		return true
	}
	if v.count >= rl.limit {
		return false
	}
	v.count++
	return true
}

// rateKey prefers the tenant over the network peer, so one busy dashboard
// can't starve other businesses behind the same proxy.
func rateKey(r *http.Request) string {
	if biz := strings.TrimSpace(r.Header.Get("X-Business-Id")); biz != "" {
		return "biz:" + biz
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		parts := strings.Split(ip, ",")
		return "ip:" + strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return "ip:" + host
	}
	return "ip:" + r.RemoteAddr
}

func retryAfter(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
