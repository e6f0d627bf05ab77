package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MsgTooManyAttempts is the 429 body.
const MsgTooManyAttempts = "Too many attempts. Please wait a minute and try again."

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = 5 * time.Minute
)

// RateLimiter provides per-IP token buckets.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per IP with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether a request from ip is within the rate limit.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Sweep evicts buckets idle since before now minus the idle TTL.
func (rl *RateLimiter) Sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := now.Add(-limiterIdleTTL)
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// Run sweeps periodically until done is closed.
func (rl *RateLimiter) Run(done <-chan struct{}) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			rl.Sweep(rl.now())
		}
	}
}

// RateLimit returns an HTTP middleware that rejects requests exceeding the
// limiter with 429 Too Many Requests.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, MsgTooManyAttempts)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers X-Real-Ip set by chi's RealIP middleware.
func clientIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
