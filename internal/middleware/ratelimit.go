package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter limits mutating requests per client IP
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mutex    sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing r requests per second with
// the given burst per client.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}

	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	limiter, ok := rl.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[ip] = limiter
	}
	return limiter
}

// Middleware rejects requests over the per-client budget with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !rl.limiterFor(ip).Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// cleanup drops idle limiters so the map does not grow unbounded
func (rl *RateLimiter) cleanup() {
	for {
		time.Sleep(10 * time.Minute)

		rl.mutex.Lock()
		rl.limiters = make(map[string]*rate.Limiter)
		rl.mutex.Unlock()
	}
}
