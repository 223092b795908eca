package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitorIdle is how long an unseen client keeps its bucket.
const visitorIdle = 3 * time.Minute

// RateLimiter is a per-client token bucket keyed by remote IP. Each client
// may burst up to the per-minute allowance and then refills evenly.
type RateLimiter struct {
	limit rate.Limit
	burst int
	retry string
	deny  http.Handler

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter allows perMinute requests per client per minute. deny
// writes the response for rejected requests; nil selects a plain 429.
func NewRateLimiter(perMinute int, deny http.Handler) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if deny == nil {
		deny = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		})
	}
	retry := time.Minute / time.Duration(perMinute)
	return &RateLimiter{
		limit:    rate.Every(retry),
		burst:    perMinute,
		retry:    strconv.Itoa(max(1, int((retry+time.Second-1)/time.Second))),
		deny:     deny,
		visitors: make(map[string]*visitor),
	}
}

// Allow consumes a token for key.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.seen = time.Now()
	rl.mu.Unlock()

	return v.lim.Allow()
}

// Handler rejects requests from clients over their allowance.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientKey(r.RemoteAddr)) {
			w.Header().Set("Retry-After", rl.retry)
			rl.deny.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sweep forgets clients not seen since before cutoff.
func (rl *RateLimiter) Sweep(cutoff time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	n := 0
	for k, v := range rl.visitors {
		if v.seen.Before(cutoff) {
			delete(rl.visitors, k)
			n++
		}
	}
	return n
}

// Run sweeps idle clients every minute until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.Sweep(now.Add(-visitorIdle))
		}
	}
}

func clientKey(remote string) string {
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
